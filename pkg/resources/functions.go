package resources

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionString builds the postgres URL from the DB_* settings.
func ConnectionString(v *viper.Viper) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(v.GetString("DB_USER"), v.GetString("DB_PASSWORD")),
		Host:   net.JoinHostPort(v.GetString("DB_HOST"), v.GetString("DB_PORT")),
		Path:   "/" + v.GetString("DB_NAME"),
	}

	if sslmode := v.GetString("DB_SSLMODE"); sslmode != "" {
		u.RawQuery = url.Values{"sslmode": {sslmode}}.Encode()
	}

	return u.String()
}

// CreateDatabaseConnectionPool creates the pool and waits for the database
// with PingWithRetry. When the database never answers the failure is logged
// at fatal level and the pool is still returned, so the service starts
// degraded instead of exiting.
func CreateDatabaseConnectionPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(ConnectionString(viper.GetViper()))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to parse database connection string")
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to create database connection pool")
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	attempts := viper.GetUint("DB_CONNECT_ATTEMPTS")
	delay := viper.GetDuration("DB_CONNECT_DELAY")

	err = PingWithRetry(ctx, pool, attempts, delay)
	if err != nil {
		log.Ctx(ctx).WithLevel(zerolog.FatalLevel).Err(err).
			Str("stage", "startup").
			Uint("attempts", attempts).
			Msg("database unreachable, continuing without it")
	}

	return pool, nil
}

// PingWithRetry pings db up to attempts times, waiting attempt × delay
// between tries.
func PingWithRetry(ctx context.Context, db Pinger, attempts uint, delay time.Duration) error {
	if attempts == 0 {
		attempts = 1
	}

	err := retry.Do(
		func() error {
			return db.Ping(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return time.Duration(n+1) * delay
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warn().Err(err).
				Str("stage", "startup").
				Uint("attempt", n+1).
				Uint("attempts", attempts).
				Msg("database ping failed")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
