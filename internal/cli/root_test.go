package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/tabpile/internal/record"
	"github.com/p-blackswan/tabpile/internal/store"
	"github.com/p-blackswan/tabpile/internal/tabs"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "tabpile.db")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("KV_BACKEND", "sqlite")
	t.Setenv("MGMT_AUTH_MODE", "none")
	t.Setenv("POLICY_FILE", "")
	t.Setenv("ARCHIVE_FOLDER", "Pile of Shame")
	return dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tabpile", cmd.Use)
	assert.Contains(t, cmd.Long, "Pile of Shame")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"serve"}, {"max-age"}, {"archive", "list"}, {"records", "list"}, {"token", "issue"},
	} {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "max-age", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestMaxAge_DefaultThenSet(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "max-age")
	require.NoError(t, err)
	assert.Contains(t, out, "1440 minutes (default)")

	out, err = execute(t, "max-age", "30")
	require.NoError(t, err)
	assert.Equal(t, "max age: 30 minutes\n", out)

	out, err = execute(t, "max-age", "--format", "json")
	require.NoError(t, err)
	var res maxAgeResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, maxAgeResult{MaxAgeMinutes: 30, Set: true}, res)
}

func TestMaxAge_RejectsNonPositive(t *testing.T) {
	setupEnv(t)
	for _, arg := range []string{"0", "-5", "abc"} {
		_, err := execute(t, "max-age", arg)
		assert.Error(t, err, arg)
	}
}

func TestRecordsList(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := execute(t, "records", "list")
	require.NoError(t, err)
	assert.Equal(t, "no records\n", out)

	st, err := store.New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	records := record.NewAdapter(st.KV(), clock, zerolog.Nop())
	_, err = records.UpsertPartial(context.Background(), "https://example.com/a", record.Touch(clock.Now()))
	require.NoError(t, err)
	_, err = records.UpsertPartial(context.Background(), "https://example.com/b", record.SetDisabled(true))
	require.NoError(t, err)
	require.NoError(t, records.SetThreshold(context.Background(), 5))
	require.NoError(t, st.Close())

	out, err = execute(t, "records", "list", "--format", "json")
	require.NoError(t, err)
	var entries []record.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "https://example.com/a", entries[0].Key)
	assert.False(t, entries[0].Disabled)
	assert.Equal(t, "https://example.com/b", entries[1].Key)
	assert.True(t, entries[1].Disabled)

	out, err = execute(t, "records", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "https://example.com/b")
}

func TestArchiveList(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := execute(t, "archive", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "is empty")

	st, err := store.New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()
	folder, err := st.Bookmarks().CreateFolder(ctx, "Pile of Shame")
	require.NoError(t, err)
	_, err = st.Bookmarks().CreateEntry(ctx, tabs.Entry{Title: "Example", URL: "https://example.com/page", ParentID: folder.ID})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err = execute(t, "archive", "list", "--format", "json")
	require.NoError(t, err)
	var entries []tabs.Bookmark
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.com/page", entries[0].URL)
	assert.Equal(t, folder.ID, entries[0].ParentID)

	_, err = execute(t, "archive", "list", "--limit", "0")
	assert.Error(t, err)
}

func TestTokenIssue(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "token", "issue")
	require.Error(t, err)

	t.Setenv("MGMT_JWT_SECRET", "test-secret")
	out, err := execute(t, "token", "issue", "--role", "operator")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)

	_, err = execute(t, "token", "issue", "--role", "root")
	assert.Error(t, err)
}
