package resources

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var detailedErrorEnvs = []string{"local", "development"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DEBUG_HOST", "localhost")
	v.SetDefault("DEBUG_PORT", "6060")

	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "tzevents")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_CONNECT_ATTEMPTS", 10)
	v.SetDefault("DB_CONNECT_DELAY", 2*time.Second)

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
}

// Default loads configuration into the global viper instance, sets up the
// global zerolog logger and returns ctx carrying that logger.
func Default(ctx context.Context, name string, version string) context.Context {
	err := LoadConfig(viper.GetViper(), name)

	env := viper.GetString("APP_ENV")

	level, levelErr := zerolog.ParseLevel(strings.ToLower(viper.GetString("LOG_LEVEL")))
	if levelErr != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", name).
		Str("version", version).
		Str("env", env).
		Logger()
	zerolog.DefaultContextLogger = &log.Logger

	if err != nil {
		log.Warn().Err(err).Str("stage", "startup").Msg("config file ignored")
	}

	if levelErr != nil {
		log.Warn().Err(levelErr).Str("stage", "startup").Msg("invalid log level, using info")
	}

	return log.Logger.WithContext(ctx)
}

// LoadConfig applies defaults, environment variables and an optional
// config.yaml from the working directory or /etc/<name>. A missing file is
// not an error.
func LoadConfig(v *viper.Viper, name string) error {
	setDefaults(v)
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/" + name)

	err := v.ReadInConfig()

	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return err
	}

	return nil
}

// ErrorDetailsEnabled reports whether error responses may carry internal
// details in the configured environment.
func ErrorDetailsEnabled(v *viper.Viper) bool {
	return slices.Contains(detailedErrorEnvs, strings.ToLower(v.GetString("APP_ENV")))
}
