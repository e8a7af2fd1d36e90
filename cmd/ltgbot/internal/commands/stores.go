package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/loadthegraphics/ltgbot/internal/store"
	memorystore "github.com/loadthegraphics/ltgbot/internal/store/memory"
	postgresstore "github.com/loadthegraphics/ltgbot/internal/store/postgres"
	redisstore "github.com/loadthegraphics/ltgbot/internal/store/redis"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"
	storeRedis    = "redis"
)

type StoreFlags struct {
	StoreType   string        `help:"session store type (memory, postgres or redis)" default:"memory" env:"LTG_STORE_TYPE" enum:"memory,postgres,redis"`
	Retention   time.Duration `help:"how long a search session stays usable after it starts" default:"2h" env:"LTG_RETENTION"`
	MaxSessions int           `help:"maximum number of live sessions, 0 is unlimited" default:"0" env:"LTG_MAX_SESSIONS"`

	Postgres PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Redis    RedisStoreFlags    `embed:"" prefix:"redis-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32         `help:"maximum number of connections in pool" default:"10"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"1"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"LTG_POSTGRES_AUTO_MIGRATE"`
}

// check reports settings the postgres store can't run without.
func (s *PostgresStoreFlags) check() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: s.MaxConnLifetime,
		MaxConnIdleTime: s.MaxConnIdleTime,
	}
}

type RedisStoreFlags struct {
	Addr      string `help:"Redis address (host:port)" default:"localhost:6379" env:"REDIS_ADDR"`
	Password  string `help:"Redis password" env:"REDIS_PASSWORD"`
	DB        int    `help:"Redis database number" default:"0" env:"REDIS_DB"`
	KeyPrefix string `help:"prefix for all Redis keys" default:"ltg:" env:"LTG_REDIS_KEY_PREFIX"`
}

func (s *RedisStoreFlags) check() error {
	if s.Addr == "" {
		return errors.New("Redis address is required (--redis-addr or REDIS_ADDR)")
	}
	return nil
}

func (f *StoreFlags) Validate() error {
	switch f.StoreType {
	case storePostgres:
		return f.Postgres.check()
	case storeRedis:
		return f.Redis.check()
	}
	return nil
}

func (f *StoreFlags) config() store.Config {
	return store.Config{
		Retention:   f.Retention,
		MaxSessions: f.MaxSessions,
	}
}

// open creates the configured session store. The returned close func releases its connections.
func (f *StoreFlags) open(ctx context.Context, log zerolog.Logger) (store.SessionStore, func(), error) {
	if err := f.Validate(); err != nil {
		return nil, nil, err
	}

	switch f.StoreType {
	case storePostgres:
		pool, err := postgresstore.NewPool(ctx, f.Postgres.poolConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		if f.Postgres.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		sessions, err := postgresstore.NewSessionStore(pool, f.config())
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to create session store: %w", err)
		}

		log.Info().Msg("Using PostgreSQL session store")
		return sessions, pool.Close, nil

	case storeRedis:
		rdb, err := redisstore.NewClient(ctx, redisstore.ClientConfig{
			Addr:     f.Redis.Addr,
			Password: f.Redis.Password,
			DB:       f.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}

		sessions, err := redisstore.NewSessionStore(rdb, f.config(), f.Redis.KeyPrefix)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to create session store: %w", err)
		}

		closeFn := func() {
			sessions.Close()
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Redis client")
			}
		}

		log.Info().Str("addr", f.Redis.Addr).Msg("Using Redis session store")
		return sessions, closeFn, nil

	default:
		sessions, err := memorystore.NewSessionStore(f.config())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create session store: %w", err)
		}

		log.Info().Msg("Using in-memory session store")
		return sessions, func() {}, nil
	}
}
