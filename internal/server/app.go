// Package server wires the relay together: storage backends, services, the
// websocket endpoint, the admin API and background sweepers, and owns their
// startup and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/logging"
	"github.com/dmitrijs2005/vaultrelay/internal/server/admin"
	"github.com/dmitrijs2005/vaultrelay/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultrelay/internal/server/config"
	"github.com/dmitrijs2005/vaultrelay/internal/server/dispatcher"
	"github.com/dmitrijs2005/vaultrelay/internal/server/fanout"
	"github.com/dmitrijs2005/vaultrelay/internal/server/metrics"
	"github.com/dmitrijs2005/vaultrelay/internal/server/ratelimit"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultrelay/internal/server/services"
	"github.com/dmitrijs2005/vaultrelay/internal/server/sessions"
	"github.com/dmitrijs2005/vaultrelay/internal/server/sweeper"
	"github.com/dmitrijs2005/vaultrelay/internal/server/ws"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	metrics     *metrics.Metrics
	sessions    *sessions.Registry
	gate        *ratelimit.Gate
	vaults      *services.VaultService
	activation  *services.ActivationService
	sweeper     *sweeper.Sweeper
	wsHandler   *ws.Handler
}

// vaultAdmin releases the sessions bound to a vault once the vault is gone,
// so they have to register again before touching it.
type vaultAdmin struct {
	*services.VaultService
	sessions *sessions.Registry
}

func (v vaultAdmin) DeleteVault(ctx context.Context, vaultID string) (int, error) {
	n, err := v.VaultService.DeleteVault(ctx, vaultID)
	if err != nil {
		return 0, err
	}
	v.sessions.UnbindVault(vaultID)
	return n, nil
}

// newPostgresManager and newS3Store are seams for tests.
var (
	newPostgresManager = func(ctx context.Context, dsn string) (repomanager.RepositoryManager, error) {
		return repomanager.NewPostgresRepositoryManager(ctx, dsn)
	}
	newS3Store = func(ctx context.Context, cfg blobstore.S3Config) (blobstore.Store, error) {
		return blobstore.NewS3Store(ctx, cfg)
	}
)

// NewApp builds every component from c. An empty DatabaseDSN selects the
// in-memory store.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	var rm repomanager.RepositoryManager
	if c.DatabaseDSN != "" {
		m, err := newPostgresManager(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		rm = m
	} else {
		logger.Warn(ctx, "no database configured, using in-memory store")
		rm = repomanager.NewInMemoryRepositoryManager()
	}

	var blobs blobstore.Store
	if c.BlobStorage == config.BlobStorageS3 {
		s, err := newS3Store(ctx, blobstore.S3Config{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			_ = rm.Close()
			return nil, fmt.Errorf("blob storage init error: %w", err)
		}
		blobs = s
	}

	m := metrics.New()
	vs := services.NewVaultService(rm, blobs, logger)

	return &App{
		config:      c,
		logger:      logger,
		repomanager: rm,
		metrics:     m,
		sessions:    sessions.NewRegistry(),
		gate:        ratelimit.NewGate(c.RateLimitPerIP, c.RateLimitPerVault, c.RateLimitWindow),
		vaults:      vs,
		activation:  services.NewActivationService(rm, logger),
		sweeper:     sweeper.New(vs, c.RetentionPeriod, c.SweepInterval, m, logger),
	}, nil
}

func (app *App) clientIP(r *http.Request) string {
	return ws.ClientIP(r, app.config.TrustProxy)
}

// Router returns the HTTP routes of the relay. ctx bounds the lifetime of
// websocket connections.
func (app *App) Router(ctx context.Context) *mux.Router {
	notifier := fanout.NewNotifier(app.sessions, app.metrics, app.logger)
	d := dispatcher.New(app.vaults, app.activation, app.sessions, notifier, app.metrics, app.logger, app.config.RequireActivation)

	opts := ws.DefaultOptions()
	opts.MaxMessageBytes = app.config.MaxMessageBytes
	opts.TrustProxy = app.config.TrustProxy
	wsHandler := ws.NewHandler(ctx, app.sessions, d, app.gate, app.metrics, app.logger, opts)
	app.wsHandler = wsHandler

	r := mux.NewRouter()
	admin.NewAPI(app.activation, vaultAdmin{app.vaults, app.sessions}, app.gate, app.clientIP, app.config.AdminSecret, app.logger).Register(r)
	r.Handle("/metrics", app.metrics.Handler()).Methods(http.MethodGet)
	r.Handle("/ws", wsHandler).Methods(http.MethodGet)
	r.Handle("/", wsHandler).Methods(http.MethodGet)
	return r
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run listens on the configured address and serves until ctx is cancelled
// or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	ln, err := net.Listen("tcp", app.config.Addr())
	if err != nil {
		_ = app.repomanager.Close()
		return fmt.Errorf("listen error: %w", err)
	}
	return app.Serve(ctx, ln)
}

// Serve runs the relay on ln until ctx is cancelled, then shuts down: the
// sweepers stop, the HTTP server drains, open connections are closed and
// their read loops finish, and only then is the store released.
func (app *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting relay...",
		"addr", ln.Addr().String(),
		"require_activation", app.config.RequireActivation,
		"admin_enabled", app.config.AdminSecret != "",
		"blob_storage", app.config.BlobStorage,
		"persistent", app.config.DatabaseDSN != "",
	)

	srv := &http.Server{
		Handler:           app.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		app.gate.RunSweeper(ctx, app.config.RateLimitSweepInterval)
	}()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
		if err != nil {
			app.logger.Error(ctx, "http server error", "error", err)
		}
	}
	cancelFunc()

	app.logger.Info(ctx, "Shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn(shutdownCtx, "http shutdown error", "error", err)
	}

	app.sessions.CloseAll()
	app.wsHandler.Wait()
	wg.Wait()

	if err := app.repomanager.Close(); err != nil {
		app.logger.Warn(shutdownCtx, "store close error", "error", err)
	}

	app.logger.Info(shutdownCtx, "Stopped")
	return runErr
}
