package main

import (
	"context"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/qmdx00/lifecycle"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"tzevents/core"
	"tzevents/pkg/resources"
	"tzevents/pkg/servers"
	"tzevents/pkg/timezone"
)

func main() {
	name, version := "tzevents", "1.0"

	// 1. Config (Logger base included)
	ctx := resources.Default(context.Background(), name, version)
	env := viper.GetString("APP_ENV")

	startupLogger := log.Ctx(ctx).With().Str("stage", "startup").Str("component", "main").Logger()
	shutdownLogger := log.Ctx(ctx).With().Str("stage", "shut down").Str("component", "main").Logger()

	startupLogger.Info().Msg("application starting up")
	defer shutdownLogger.Info().Msg("application stopped")

	hookFn := func(ctx context.Context) (context.Context, error) {
		log.Logger = log.Logger.Hook(resources.NewZerologHook(name, version))
		return log.Logger.WithContext(ctx), nil
	}

	// 2. Telemetry (traces/metrics/logs), zerolog bridged into OTel logs
	ctx, stopTelemetry, err := resources.Observe(ctx, name, version, env, hookFn, resources.WithInsecure())
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg("unable to setup otel telemetry")
	}

	// 3. Database; an unreachable database leaves the service up and degraded
	pool, err := resources.CreateDatabaseConnectionPool(ctx)
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg("unable to create database connection pool")
	}

	if err = core.Migrate(ctx, pool); err != nil {
		startupLogger.Error().Err(err).Msg("schema migration failed")
	}

	// 4. Wiring
	repo := core.NewRepository(pool)
	catalog := timezone.NewCatalog()
	handlers := core.NewHandlers(repo, catalog, core.WithErrorDetails(resources.ErrorDetailsEnabled(viper.GetViper())))

	gin.SetMode(gin.ReleaseMode)

	restHandler := gin.New()
	restHandler.Use(gin.Recovery())
	restHandler.Use(otelgin.Middleware(name))
	restHandler.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", resources.RequestIdHeader},
		ExposeHeaders:   []string{"Location", resources.RequestIdHeader},
		MaxAge:          12 * time.Hour,
	}))
	restHandler.Use(resources.RequestLogger("/health"))
	restHandler.Use(resources.NewHTTPMetrics(name).Middleware())
	core.Register(restHandler, handlers)

	debugHandler := http.NewServeMux()
	debugHandler.HandleFunc("/debug/pprof/", pprof.Index)
	debugHandler.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugHandler.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugHandler.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugHandler.HandleFunc("/debug/pprof/trace", pprof.Trace)
	debugHandler.Handle("/metrics", resources.PrometheusHandler())

	// 5. Daemons/servers lifecycle
	app := lifecycle.NewApp(
		lifecycle.WithName(name),
		lifecycle.WithVersion(version),
	)

	stopTelemetryFn := resources.CloseFunc(func() {
		stopTelemetry(ctx, servers.ShutdownTimeout)
	})
	app.Attach(servers.BuildBaseServer(stopTelemetryFn, pool))

	debugServer := servers.NewHTTPServer(viper.GetString("DEBUG_HOST"), viper.GetString("DEBUG_PORT"),
		resources.LogHandler("debug-server", debugHandler))
	app.Attach(servers.BuildHttpServer("debug-server", debugServer))

	restServer := servers.NewHTTPServer(viper.GetString("HTTP_HOST"), viper.GetString("HTTP_PORT"),
		resources.InstrumentHandler("rest-server", restHandler))
	app.Attach(servers.BuildHttpServer("rest-server", restServer))

	startupLogger.Info().Str("rest", restServer.Addr).Str("debug", debugServer.Addr).Msg("application running")

	// 6. Run until SIGINT/SIGTERM
	if err = app.Run(); err != nil {
		shutdownLogger.Error().Err(err).Msg("runtime error")
	}
}
