package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/judgeboard/internal/adapters/authjwt"
	"github.com/okian/judgeboard/internal/adapters/http/api"
	"github.com/okian/judgeboard/internal/adapters/http/site"
	"github.com/okian/judgeboard/internal/adapters/http/swagger"
	"github.com/okian/judgeboard/internal/adapters/idp"
	"github.com/okian/judgeboard/internal/adapters/mq/notify"
	"github.com/okian/judgeboard/internal/adapters/repository"
	"github.com/okian/judgeboard/internal/adapters/repository/pgstore"
	app "github.com/okian/judgeboard/internal/app"
	"github.com/okian/judgeboard/internal/config"
	"github.com/okian/judgeboard/internal/domain/ranking"
	"github.com/okian/judgeboard/internal/domain/submission"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// We collect our own system metrics on the custom registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "judgeboard exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a, err := assemble(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// assembly is the wired process: service, optional bus and HTTP handler.
type assembly struct {
	svc     *app.Service
	bus     *notify.Bus
	handler http.Handler
}

func (a *assembly) close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			logger.Get().Warn(context.Background(), "closing notification bus", logger.Error(err))
		}
	}
	a.svc.Stop()
}

// assemble builds every component from cfg and starts the service.
func assemble(ctx context.Context, cfg *config.Config) (*assembly, error) {
	log := logger.Get()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	admins, err := idp.New(idp.Config{
		Kind:          cfg.IDP,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		TokenURL:      cfg.OAuthTokenURL,
		ClientID:      cfg.OAuthClientID,
		ClientSecret:  cfg.OAuthClientSecret,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	tokens, err := authjwt.NewIssuer(cfg.JWTSecret, authjwt.WithTTL(cfg.TokenTTL))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	policy, err := submission.ParsePolicy(cfg.ScorePolicy)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(logger.Named("service")),
		app.WithStore(repository.Instrument(store)),
		app.WithRanking(ranking.New(ranking.WithTieBreak(ranking.ByName))),
		app.WithScorePolicy(policy),
		app.WithCategories(cfg.Categories),
		app.WithTokenIssuer(tokens),
		app.WithIdentityProvider(admins),
	}

	var bus *notify.Bus
	if cfg.NatsURL != "" {
		bus, err = notify.Connect(cfg.NatsURL, notify.WithSubject(cfg.SessionSubject), notify.WithConnName("judgeboard"))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		opts = append(opts, app.WithNotifier(bus))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		if bus != nil {
			_ = bus.Close()
		}
		_ = store.Close()
		return nil, err
	}
	a := &assembly{svc: svc, bus: bus}

	if bus != nil {
		if err := bus.Subscribe(ctx, svc.HandleSessionChange); err != nil {
			a.close()
			return nil, err
		}
		log.Info(ctx, "listening for session changes", logger.String("subject", bus.Subject()))
	}

	a.handler = api.NewServer(svc,
		api.WithSignInLimit(cfg.SignInRate, cfg.SignInBurst),
		api.WithAllowedOrigins(cfg.AllowedOrigins...),
		api.WithRoutes(func(r chi.Router) {
			site.Register(ctx, r, svc, cfg.Title)
			swagger.Register(ctx, r)
		}),
	).Handler()
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.Store != config.StorePostgres {
		return repository.NewMemoryStore(), nil
	}
	pg, err := pgstore.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}
	return pg, nil
}

// startSystemMetricsUpdater updates the process gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	var avgPauseMs float64
	if m.NumGC > 0 {
		avgPauseMs = float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
	}
	metrics.UpdateSystem(m.Alloc, runtime.NumGoroutine(), avgPauseMs)
}
