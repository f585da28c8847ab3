// Package record adapts a key-value store into typed lifecycle records and
// the sweep threshold setting.
//
// Records are stored as JSON under their resource key. The threshold lives
// under its own key and is independent of the records. Partial updates are
// always read-merge-write: a field that is not part of a Patch keeps its
// stored value.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/tabpile/internal/errors"
	"github.com/p-blackswan/tabpile/pkg/kvstore"
)

const (
	// ThresholdKey is the storage key of the max-age setting.
	ThresholdKey = "max_age"
	// DefaultSweepMinutes is the threshold the sweep uses when none is stored.
	DefaultSweepMinutes = 1
	// DefaultMaxAgeMinutes is the value the settings form offers when none is stored.
	DefaultMaxAgeMinutes = 60 * 24
)

// Record is the lifecycle state of one resource key.
type Record struct {
	IdleSince int64 `json:"idle_since"` // Unix ms, 0 when never set
	Disabled  bool  `json:"disabled"`
}

// IdleSinceOr returns IdleSince, or fallback when it was never set.
func (r Record) IdleSinceOr(fallback int64) int64 {
	if r.IdleSince == 0 {
		return fallback
	}
	return r.IdleSince
}

// Patch selects the fields an update writes. Nil fields are left alone.
type Patch struct {
	IdleSince *int64
	Disabled  *bool
}

// Touch returns a patch that only resets IdleSince.
func Touch(at time.Time) Patch {
	ms := at.UnixMilli()
	return Patch{IdleSince: &ms}
}

// SetDisabled returns a patch that only sets Disabled.
func SetDisabled(disabled bool) Patch {
	return Patch{Disabled: &disabled}
}

// stored is the on-disk shape; pointers distinguish absent from zero.
type stored struct {
	IdleSince *int64 `json:"idle_since,omitempty"`
	Disabled  *bool  `json:"disabled,omitempty"`
}

// Entry pairs a key with its record, for listings.
type Entry struct {
	Key string `json:"key"`
	Record
}

// Adapter is the typed record store.
type Adapter struct {
	kv     kvstore.Store
	clock  clockwork.Clock
	logger zerolog.Logger

	// mu serializes read-merge-write so no other write lands mid-merge.
	mu sync.Mutex
}

// NewAdapter wraps kv. A nil clock uses the real clock.
func NewAdapter(kv kvstore.Store, clock clockwork.Clock, logger zerolog.Logger) *Adapter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Adapter{
		kv:     kv,
		clock:  clock,
		logger: logger.With().Str("component", "record").Logger(),
	}
}

// Get returns the record for key and whether one was stored.
func (a *Adapter) Get(ctx context.Context, key string) (Record, bool, error) {
	raw, err := a.kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, perrors.Wrap(perrors.Storage, "get", err)
	}

	var s stored
	if err := json.Unmarshal(raw, &s); err != nil {
		// Unreadable records are treated as absent and rewritten on next update.
		a.logger.Warn().Err(err).Str("key", key).Msg("discarding malformed record")
		return Record{}, false, nil
	}

	var r Record
	if s.IdleSince != nil {
		r.IdleSince = *s.IdleSince
	}
	if s.Disabled != nil {
		r.Disabled = *s.Disabled
	}
	return r, true, nil
}

// UpsertPartial applies p on top of the current record, or on top of a
// default record (idle since now, enabled) when none exists, and writes the
// merged record back.
func (a *Adapter) UpsertPartial(ctx context.Context, key string, p Patch) (Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur, found, err := a.Get(ctx, key)
	if err != nil {
		return Record{}, err
	}
	if !found {
		cur = Record{IdleSince: a.clock.Now().UnixMilli()}
	}

	if p.IdleSince != nil {
		cur.IdleSince = *p.IdleSince
	}
	if p.Disabled != nil {
		cur.Disabled = *p.Disabled
	}

	if err := a.put(ctx, key, cur); err != nil {
		return Record{}, err
	}
	return cur, nil
}

// Toggle flips Disabled for key and returns the new record.
func (a *Adapter) Toggle(ctx context.Context, key string) (Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur, found, err := a.Get(ctx, key)
	if err != nil {
		return Record{}, err
	}
	if !found {
		cur = Record{IdleSince: a.clock.Now().UnixMilli()}
	}
	cur.Disabled = !cur.Disabled

	if err := a.put(ctx, key, cur); err != nil {
		return Record{}, err
	}
	return cur, nil
}

// Ensure creates a default record for key if none exists. It returns the
// current record and whether it was created.
func (a *Adapter) Ensure(ctx context.Context, key string) (Record, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur, found, err := a.Get(ctx, key)
	if err != nil {
		return Record{}, false, err
	}
	if found {
		return cur, false, nil
	}

	cur = Record{IdleSince: a.clock.Now().UnixMilli()}
	if err := a.put(ctx, key, cur); err != nil {
		return Record{}, false, err
	}
	return cur, true, nil
}

// Remove deletes the record for key. Absent keys are a no-op.
func (a *Adapter) Remove(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return perrors.Wrap(perrors.Storage, "remove", a.kv.Remove(ctx, key))
}

// List returns every stored record sorted by key.
func (a *Adapter) List(ctx context.Context) ([]Entry, error) {
	keys, err := a.kv.Keys(ctx)
	if err != nil {
		return nil, perrors.Wrap(perrors.Storage, "keys", err)
	}
	sort.Strings(keys)

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		if k == ThresholdKey {
			continue
		}
		r, found, err := a.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, Entry{Key: k, Record: r})
		}
	}
	return out, nil
}

func (a *Adapter) put(ctx context.Context, key string, r Record) error {
	raw, err := json.Marshal(stored{IdleSince: &r.IdleSince, Disabled: &r.Disabled})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return perrors.Wrap(perrors.Storage, "set", a.kv.Set(ctx, key, raw))
}

// Threshold returns the stored max age in minutes and whether one is set.
// Values that are not positive integers count as unset.
func (a *Adapter) Threshold(ctx context.Context) (int, bool, error) {
	raw, err := a.kv.Get(ctx, ThresholdKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, perrors.Wrap(perrors.Storage, "get", err)
	}

	minutes, err := parseMinutes(raw)
	if err != nil {
		a.logger.Warn().Err(err).Str("value", string(raw)).Msg("ignoring invalid max age")
		return 0, false, nil
	}
	return minutes, true, nil
}

// ThresholdDuration is the sweep's view of the threshold, falling back to
// DefaultSweepMinutes when unset.
func (a *Adapter) ThresholdDuration(ctx context.Context) (time.Duration, error) {
	minutes, set, err := a.Threshold(ctx)
	if err != nil {
		return 0, err
	}
	if !set {
		minutes = DefaultSweepMinutes
	}
	return time.Duration(minutes) * time.Minute, nil
}

// SetThreshold stores the max age in minutes.
func (a *Adapter) SetThreshold(ctx context.Context, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("max age must be a positive number of minutes: %w", perrors.ErrInvalidInput)
	}
	raw, _ := json.Marshal(minutes)
	return perrors.Wrap(perrors.Storage, "set", a.kv.Set(ctx, ThresholdKey, raw))
}

// parseMinutes accepts a JSON number or a JSON/plain string holding one,
// since form submissions store the raw input text.
func parseMinutes(raw []byte) (int, error) {
	text := strings.TrimSpace(string(raw))
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = strings.TrimSpace(s)
	}
	minutes, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("parse minutes: %w", err)
	}
	if minutes <= 0 {
		return 0, fmt.Errorf("minutes must be positive, got %d", minutes)
	}
	return minutes, nil
}
