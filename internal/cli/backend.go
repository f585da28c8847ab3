package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/tabpile/internal/config"
	"github.com/p-blackswan/tabpile/internal/health"
	"github.com/p-blackswan/tabpile/internal/retry"
	"github.com/p-blackswan/tabpile/internal/store"
	"github.com/p-blackswan/tabpile/pkg/kvstore"
)

// backends are the opened persistence layers.
type backends struct {
	store *store.Store
	kv    kvstore.Store
	ping  map[string]health.CheckFunc
	close func() error
}

// openBackends opens the SQLite store and the configured KV backend.
func openBackends(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backends, error) {
	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	b := &backends{
		store: st,
		ping:  map[string]health.CheckFunc{"store": health.PingCheck(st.Ping)},
		close: st.Close,
	}

	switch strings.ToLower(cfg.KVBackend) {
	case "memory":
		b.kv = kvstore.NewMemoryStore()
	case "redis":
		var rdb *goredis.Client
		err := retry.Do(ctx, clockwork.NewRealClock(), retry.DefaultConfig(), func(ctx context.Context) error {
			var dialErr error
			rdb, dialErr = kvstore.DialRedis(ctx, cfg.RedisURL)
			if dialErr != nil {
				logger.Warn().Err(dialErr).Msg("redis not reachable yet")
			}
			return dialErr
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		b.kv = kvstore.NewRedisStore(rdb, "")
		b.ping["redis"] = health.PingCheck(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		b.close = func() error {
			return errors.Join(rdb.Close(), st.Close())
		}
	case "sqlite", "":
		b.kv = st.KV()
	default:
		st.Close()
		return nil, fmt.Errorf("unknown KV_BACKEND %q", cfg.KVBackend)
	}

	logger.Debug().Str("kv_backend", cfg.KVBackend).Str("db_path", cfg.DBPath).Msg("backends open")
	return b, nil
}
