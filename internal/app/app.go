package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/simp-lee/jwt"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/layover/internal/config"
	"github.com/simp-lee/layover/internal/domain"
	"github.com/simp-lee/layover/internal/middleware"
	"github.com/simp-lee/layover/internal/module/addon"
	"github.com/simp-lee/layover/internal/module/auth"
	"github.com/simp-lee/layover/internal/module/console"
	"github.com/simp-lee/layover/internal/module/store"
	"github.com/simp-lee/layover/internal/route"
	"github.com/simp-lee/layover/web"
)

const manifestLoadTimeout = 10 * time.Second

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine *gin.Engine
	db     *gorm.DB
	logger *logger.Logger
	cfg    *config.Config
	table  *route.Table
	jwt    jwt.Service
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler, timeout time.Duration) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      timeout,
		IdleTimeout:       120 * time.Second,
	}
}

var newJWTService = func(secret string) (jwt.Service, error) {
	return jwt.New(secret)
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New creates and wires a fully configured App from the given Config.
//
// The console route table is built once here from the configured addons
// followed by the registry's addons; registry edits made while the server
// runs take effect on the next start.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := validateGinMode(cfg.Server.Mode); err != nil {
		return nil, err
	}

	success := false

	// 1. Logger.
	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior and permissive CORS")
	}
	defer func() {
		if success {
			return
		}
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	// 2. Addon registry database.
	db, err := openRegistry(cfg, log.Logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if success {
			return
		}
		closeDB(db, log.Logger)
	}()

	// 3. Write guard: admin tokens when auth is enabled.
	modules := make([]Module, 0, 4)
	var (
		jwtSvc jwt.Service
		guard  []gin.HandlerFunc
	)
	if cfg.Auth.Enabled {
		jwtSvc, err = newJWTService(cfg.Auth.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("setup jwt: %w", err)
		}
		defer func() {
			if success {
				return
			}
			jwtSvc.Close()
		}()
		authSvc := auth.NewService(jwtSvc, auth.Credentials{
			Username:     cfg.Auth.Admin.Username,
			PasswordHash: cfg.Auth.Admin.PasswordHash,
		}, cfg.Auth.TokenTTL())
		modules = append(modules, auth.NewModule(auth.NewHandler(authSvc)))
		guard = append(guard, middleware.RequireRole(jwtSvc, auth.RoleAdmin))
	} else {
		log.Warn("auth disabled: registry and store writes are not authenticated")
	}

	// 4. Registry and stores: repository → service → handler.
	reserved := ReservedPrefixes(cfg)
	svc := addon.NewAddonService(addon.NewAddonRepository(db), cfg.Addons, reserved...)
	modules = append(modules,
		addon.NewModule(addon.NewAddonHandler(svc), guard...),
		store.NewModule(store.NewStoreHandler(store.NewStoreService(store.NewStoreRepository(db))), guard...),
	)

	// 5. Route table, sealed for the lifetime of the process.
	ctx, cancel := context.WithTimeout(context.Background(), manifestLoadTimeout)
	table, err := console.LoadTable(ctx, svc)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("build route table: %w", err)
	}

	var (
		metrics        *middleware.Metrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = middleware.NewMetrics(middleware.MetricsConfig{
			Namespace: cfg.Metrics.Namespace,
			Registry:  reg,
		})
		metrics.SetRules(console.SourceCounts(table))
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	consoleModule, err := console.NewModule(
		console.NewConsoleHandler(table, cfg.Console.Title, metrics),
		reserved...,
	)
	if err != nil {
		return nil, fmt.Errorf("mount route table: %w", err)
	}

	fb, _ := table.Fallback()
	log.Info("route table loaded",
		slog.Int("rules", table.Len()),
		slog.Int("addon_rules", table.Len()-len(table.BySource(route.SourceBuiltin))),
		slog.String("fallback", fb.RedirectTo),
	)

	// 6. Gin engine with custom middleware (not gin.Default()).
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	mw := []gin.HandlerFunc{
		middleware.Recovery(log.Logger),
		middleware.RequestID(middleware.RequestIDConfig{
			TrustUpstream: cfg.Server.TrustRequestID,
		}),
		middleware.Logger(log.Logger, middleware.LoggerConfig{
			SkipPrefixes: []string{"/static/", "/partials/", "/health", cfg.Metrics.Path},
		}),
		middleware.CORS(resolveCORSConfig(cfg.Server)),
	}
	if metrics != nil {
		mw = append(mw, metrics.Handler())
	}
	engine.Use(mw...)

	// 7. Templates: hot reload from disk in debug mode, embedded otherwise.
	var fsys fs.FS
	if cfg.Server.Mode == gin.DebugMode {
		fsys, err = resolveDebugWebFS()
		if err != nil {
			return nil, fmt.Errorf("resolve debug web fs: %w", err)
		}
	} else {
		fsys = web.EmbeddedFS
	}

	renderer, err := NewTemplateRenderer(fsys, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("setup template renderer: %w", err)
	}
	engine.HTMLRender = renderer

	// 8. Routes.
	if err := RegisterRoutes(engine, &RouteDeps{
		Modules:     append(modules, consoleModule),
		DB:          db,
		Mode:        cfg.Server.Mode,
		WebFS:       fsys,
		AddonDir:    cfg.Console.AddonDir,
		Metrics:     metricsHandler,
		MetricsPath: cfg.Metrics.Path,
		Reserved:    reserved,
		Fallback:    consoleModule.Fallback(),
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	success = true
	return &App{
		engine: engine,
		db:     db,
		logger: log,
		cfg:    cfg,
		table:  table,
		jwt:    jwtSvc,
	}, nil
}

// Table returns the route table the console was mounted from.
func (a *App) Table() *route.Table {
	return a.table
}

// LoadRouteTable opens the addon registry described by cfg, builds the route
// table from it and closes the registry again. The table is not checked.
func LoadRouteTable(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*route.Table, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closeDB(db, logger)

	svc := addon.NewAddonService(addon.NewAddonRepository(db), cfg.Addons, ReservedPrefixes(cfg)...)
	return console.LoadTable(ctx, svc)
}

// openRegistry connects to the database and migrates the registry schema in
// debug mode or when database.auto_migrate is set.
func openRegistry(cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	db, err := config.SetupDatabase(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}

	if cfg.Server.Mode == gin.DebugMode || cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(&domain.Addon{}, &domain.AddonSection{}, &domain.Store{}); err != nil {
			closeDB(db, logger)
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		logger.Info("auto migration completed")
	}
	return db, nil
}

func closeDB(db *gorm.DB, logger *slog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("database close error", slog.Any("error", err))
	}
}

// ReservedPrefixes lists the paths console rules may not claim under cfg.
func ReservedPrefixes(cfg *config.Config) []string {
	prefixes := []string{"/api", "/static", "/partials", "/cp", "/health"}
	if cfg.Metrics.Enabled && cfg.Metrics.Path != "" {
		prefixes = append(prefixes, cfg.Metrics.Path)
	}
	return prefixes
}

// resolveCORSConfig applies the configured allowlist. In release mode an
// empty allowlist denies cross-origin requests.
func resolveCORSConfig(server config.ServerConfig) middleware.CORSConfig {
	corsConfig := middleware.DefaultCORSConfig()

	switch {
	case len(server.CORS.AllowOrigins) > 0:
		corsConfig.AllowOrigins = server.CORS.AllowOrigins
	case server.Mode == gin.ReleaseMode:
		corsConfig.AllowOrigins = []string{}
	}

	corsConfig.AllowCredentials = server.CORS.AllowCredentials
	if d, err := time.ParseDuration(server.CORS.MaxAge); err == nil && d > 0 {
		corsConfig.MaxAge = d
	}
	return corsConfig
}

func validateGinMode(mode string) error {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return nil
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
}

func resolveDebugWebFS() (fs.FS, error) {
	if _, file, _, ok := runtime.Caller(0); ok {
		webDir := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "web"))
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	exePath, err := os.Executable()
	if err == nil {
		webDir := filepath.Join(filepath.Dir(exePath), "web")
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	return nil, errors.New("debug web directory not found")
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// It shuts down gracefully within 5 seconds and closes the database and
// token service.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	log := a.log()
	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine, a.cfg.Server.RequestTimeout())

	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	if runErr == nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
	}

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Error("database close error", slog.Any("error", err))
			} else {
				log.Info("database connection closed")
			}
		}
	}

	if a.jwt != nil {
		a.jwt.Close()
	}

	log.Info("server stopped")
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}

	return runErr
}

func (a *App) log() *slog.Logger {
	if a.logger != nil && a.logger.Logger != nil {
		return a.logger.Logger
	}
	return slog.Default()
}
