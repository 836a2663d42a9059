package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"videovault/internal/access"
	"videovault/internal/analyzer"
	"videovault/internal/analyzer/ffprobe"
	"videovault/internal/broadcast"
	"videovault/internal/config"
	"videovault/internal/domain/admin"
	"videovault/internal/domain/auth"
	"videovault/internal/domain/media"
	"videovault/internal/domain/user"
	"videovault/internal/middleware"
	"videovault/internal/pipeline"
	jwtsvc "videovault/internal/pkg/jwt"
	"videovault/internal/pkg/response"
	"videovault/internal/storage"
	"videovault/internal/streaming"
)

type Option func(*options)

type options struct {
	fs         afero.Fs
	prober     analyzer.Prober
	classifier analyzer.Classifier
}

// WithFs stores uploads on fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

func WithProber(p analyzer.Prober) Option {
	return func(o *options) { o.prober = p }
}

func WithClassifier(c analyzer.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// App owns the HTTP server and the background machinery behind it.
type App struct {
	cfg       *config.Config
	log       *zap.Logger
	router    *gin.Engine
	server    *http.Server
	runner    *pipeline.Runner
	hub       *broadcast.Hub
	startedAt time.Time
}

// New wires every component on top of an already migrated database.
func New(cfg *config.Config, db *gorm.DB, log *zap.Logger, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		files *storage.FileStore
		err   error
	)
	if o.fs != nil {
		files = storage.New(o.fs, cfg.StorageDir)
	} else if files, err = storage.NewOS(cfg.StorageDir); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if o.prober == nil {
		o.prober = ffprobe.Prober{Binary: cfg.FFProbeBinary}
	}

	users := user.NewRepository(db)
	records := media.NewRepository(db)
	tokens := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)
	guard := access.NewGuard()
	hub := broadcast.NewHub(log)

	an := analyzer.New(files, o.prober, o.classifier, log)
	pipe, err := pipeline.New(pipeline.DefaultStages(cfg.StageDelay), records, hub, an, log)
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}
	runner := pipeline.NewRunner(pipe, cfg.RunTimeout, log)

	mediaHandler := media.NewHandler(
		media.NewService(records, files, guard, runner, cfg.MaxUploadBytes, log),
		streaming.NewStreamer(files.Fs(), log),
		cfg.MaxUploadBytes,
		log,
	)
	authHandler := auth.NewHandler(auth.NewService(users, tokens, log), log)
	adminHandler := admin.NewHandler(admin.NewService(users, records, files, log), log)
	wsHandler := broadcast.NewWSHandler(hub, guard, cfg.BroadcastBuffer, cfg.CORSAllowedOrigins, log)

	a := &App{
		cfg:       cfg,
		log:       log,
		runner:    runner,
		hub:       hub,
		startedAt: time.Now(),
	}

	r := gin.New()
	r.Use(middleware.ErrorLogger(log))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	header := middleware.JWTAuth(tokens, users)
	headerOrQuery := middleware.JWTAuthWithQuery(tokens, users)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/progress", headerOrQuery, wsHandler.HandleWebSocket)

	api := r.Group("/api")
	api.GET("/health", a.health)
	authHandler.RegisterPublicRoutes(api)

	protected := api.Group("", header)
	authHandler.RegisterProtectedRoutes(protected)
	admin.RegisterRoutes(protected, adminHandler, guard)

	media.RegisterRoutes(api, mediaHandler, guard, header, headerOrQuery)

	a.router = r
	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler { return a.router }

func (a *App) health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(a.startedAt).Seconds(),
	})
}

// Run serves until ctx is cancelled or the listener fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server started", zap.String("addr", a.server.Addr))
		err := a.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown requested")
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		return errors.Join(serveErr, err)
	}
	return serveErr
}

// Shutdown stops accepting requests, cancels in-flight pipeline runs and
// closes every progress subscriber, in that order.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.runner.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pipeline shutdown: %w", err))
	}
	a.hub.Close()
	a.log.Info("server stopped")
	return errors.Join(errs...)
}
