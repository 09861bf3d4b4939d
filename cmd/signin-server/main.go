package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-router"
	signin "github.com/goliatone/go-signin"
	"github.com/goliatone/go-signin/activitymap"
	"github.com/goliatone/go-signin/authclient"
	"github.com/goliatone/go-signin/middleware/csrf"
	"github.com/goliatone/go-signin/repository"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	config   signin.Config
	client   *persistence.Client
	manager  *repository.Manager
	flow     *signin.Flow
	srv      router.Server[*fiber.App]
	logger   *glog.BaseLogger
	shutdown func(context.Context) error
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("signin"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := signin.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		panic(err)
	}

	if cfg.Debug {
		redacted := cfg
		redacted.SigningKey = "********"
		fmt.Println("============")
		fmt.Println(print.MaybeHighlightJSON(redacted))
		fmt.Println("============")
	}

	ctx := context.Background()
	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithTracing(ctx, app); err != nil {
		panic(err)
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithSigninFlow(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	app.srv.Serve(cfg.ListenAddr)

	WaitExitSignal()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.shutdown(shutdownCtx); err != nil {
		app.GetLogger("app").Warn("tracer shutdown failed", "error", err)
	}
	if err := app.client.Close(); err != nil {
		app.GetLogger("app").Warn("database close failed", "error", err)
	}
}

// WithTracing installs an OTLP exporter when an endpoint is configured.
func WithTracing(ctx context.Context, app *App) error {
	app.shutdown = func(context.Context) error { return nil }

	endpoint := app.config.OtelEndpoint
	if endpoint == "" {
		return nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	app.shutdown = tp.Shutdown
	return nil
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.config.DSN)
	if err != nil {
		return err
	}

	client, err := persistence.New(app.config, db, sqlitedialect.New())
	if err != nil {
		_ = db.Close()
		return err
	}
	client.SetLogger(app.GetLogger("persistence"))

	client.RegisterSQLMigrations(signin.GetMigrationsFS())
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return err
	}

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = time.Minute
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		_ = client.Close()
		return err
	}

	manager, err := repository.NewManager(client.DB(), cacheService)
	if err != nil {
		_ = client.Close()
		return err
	}
	manager.MustValidate()

	app.client = client
	app.manager = manager
	return nil
}

func WithSigninFlow(_ context.Context, app *App) error {
	auth := authclient.New(app.config.AuthServerURL,
		authclient.WithLogger(app.GetLogger("authclient")),
		authclient.WithService("signin"),
	)

	app.flow = signin.NewFlow(auth,
		signin.WithFlowLoggerProvider(app.logger),
		signin.WithFlowStorage(app.manager.Storage()),
		signin.WithFlowCodeIssuer(auth),
		signin.WithFlowActivitySink(activitymap.Sink(func(_ context.Context, record activitymap.Normalized) error {
			app.GetLogger("activity").Info("signin activity",
				"verb", record.Verb,
				"actor_id", record.ActorID,
				"object_id", record.ObjectID,
				"metadata", record.Metadata,
			)
			return nil
		})),
	)
	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.config.Debug,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	signin.RegisterSigninRoutes(srv.Router(),
		signin.WithSigninFlow(app.flow),
		signin.WithSigninStateSealer(signin.NewStateSealerFromConfig(app.config,
			signin.WithStateSealerLogger(app.GetLogger("sealer")),
		)),
		signin.WithSigninConfig(app.config),
		signin.WithSigninLogger(app.GetLogger("http")),
		signin.WithSigninCSRF(csrf.New(csrf.Config{
			SecureKey: []byte(app.config.SigningKey),
		})),
	)

	app.srv = srv
	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
