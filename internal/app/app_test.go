package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/layover/internal/config"
	"github.com/simp-lee/layover/internal/route"
)

type fakeHTTPServer struct {
	listenErr      error
	listenStarted  chan struct{}
	shutdownCalled bool
	stopCh         chan struct{}
	mu             sync.Mutex
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenStarted != nil {
		close(f.listenStarted)
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	if f.stopCh != nil {
		<-f.stopCh
	}
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.mu.Lock()
	f.shutdownCalled = true
	f.mu.Unlock()
	if f.stopCh != nil {
		close(f.stopCh)
	}
	return nil
}

func (f *fakeHTTPServer) wasShutdownCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdownCalled
}

func browseAddons() *route.Addons {
	return &route.Addons{Items: []route.Descriptor{{
		Name: "browse",
		Sections: []route.Section{
			{Route: "/browse", TemplateHref: "browse/list.html", Controller: "BrowseCtl"},
		},
	}}}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, Mode: gin.TestMode},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			AutoMigrate: true,
			SQLite:      config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "layover.db")},
		},
		Log:     config.LogConfig{Level: "error", Format: "text"},
		Console: config.ConsoleConfig{Title: "Layover"},
		Metrics: config.MetricsConfig{Enabled: true, Namespace: "layover", Path: "/metrics"},
		Addons:  browseAddons(),
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { cleanupTestApp(a) })
	return a
}

func cleanupTestApp(a *App) {
	if a == nil {
		return
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

func TestResolveCORSConfig(t *testing.T) {
	tests := []struct {
		name            string
		server          config.ServerConfig
		wantOrigins     []string
		wantCredentials bool
		wantMaxAge      time.Duration
	}{
		{
			name:        "debug mode uses permissive default",
			server:      config.ServerConfig{Mode: gin.DebugMode},
			wantOrigins: []string{"*"},
			wantMaxAge:  24 * time.Hour,
		},
		{
			name:        "release mode denies cross-origin when not configured",
			server:      config.ServerConfig{Mode: gin.ReleaseMode},
			wantOrigins: []string{},
			wantMaxAge:  24 * time.Hour,
		},
		{
			name: "explicit allowlist with credentials and max age",
			server: config.ServerConfig{
				Mode: gin.ReleaseMode,
				CORS: config.CORSConfig{
					AllowOrigins:     []string{"https://console.example.com"},
					AllowCredentials: true,
					MaxAge:           "10m",
				},
			},
			wantOrigins:     []string{"https://console.example.com"},
			wantCredentials: true,
			wantMaxAge:      10 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveCORSConfig(tt.server)
			if strings.Join(got.AllowOrigins, ",") != strings.Join(tt.wantOrigins, ",") {
				t.Errorf("AllowOrigins = %v, want %v", got.AllowOrigins, tt.wantOrigins)
			}
			if got.AllowCredentials != tt.wantCredentials {
				t.Errorf("AllowCredentials = %v, want %v", got.AllowCredentials, tt.wantCredentials)
			}
			if got.MaxAge != tt.wantMaxAge {
				t.Errorf("MaxAge = %v, want %v", got.MaxAge, tt.wantMaxAge)
			}
		})
	}
}

func TestValidateGinMode(t *testing.T) {
	for _, mode := range []string{gin.DebugMode, gin.ReleaseMode, gin.TestMode} {
		if err := validateGinMode(mode); err != nil {
			t.Errorf("validateGinMode(%q) error = %v", mode, err)
		}
	}
	if err := validateGinMode("production"); err == nil {
		t.Error("validateGinMode(production) should fail")
	}
}

func TestReservedPrefixes(t *testing.T) {
	cfg := &config.Config{Metrics: config.MetricsConfig{Enabled: true, Path: "/internal/metrics"}}
	got := ReservedPrefixes(cfg)
	if got[len(got)-1] != "/internal/metrics" {
		t.Errorf("ReservedPrefixes() = %v, want metrics path last", got)
	}

	cfg.Metrics.Enabled = false
	for _, p := range ReservedPrefixes(cfg) {
		if p == "/internal/metrics" {
			t.Error("disabled metrics path should not be reserved")
		}
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "bad mode",
			mutate:  func(c *config.Config) { c.Server.Mode = "production" },
			wantErr: "server.mode",
		},
		{
			name:    "database setup fails",
			mutate:  func(c *config.Config) { c.Database.Driver = "mysql" },
			wantErr: "setup database",
		},
		{
			name: "registry schema missing without migration",
			mutate: func(c *config.Config) {
				c.Server.Mode = gin.ReleaseMode
				c.Database.AutoMigrate = false
			},
			wantErr: "build route table",
		},
		{
			name: "addon collides with builtin view",
			mutate: func(c *config.Config) {
				c.Addons.Items[0].Sections[0].Route = "/remote/view/:id"
			},
			wantErr: "collides",
		},
		{
			name: "addon under reserved prefix",
			mutate: func(c *config.Config) {
				c.Addons.Items[0].Sections[0].Route = "/api/browse"
			},
			wantErr: "reserved prefix",
		},
		{
			name: "addon route rejected by router",
			mutate: func(c *config.Config) {
				c.Addons.Items[0].Sections[0].Route = "/*everything"
			},
			wantErr: "register routes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			a, err := New(cfg)
			if err == nil {
				cleanupTestApp(a)
				t.Fatalf("New() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}

	if _, err := New(nil); err == nil {
		t.Error("New(nil) should fail")
	}
}

func TestNew_ServesConsole(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	if got := a.Table().Len(); got != 13 {
		t.Fatalf("Table().Len() = %d, want 13", got)
	}

	t.Run("builtin view", func(t *testing.T) {
		w := serve(a.engine, http.MethodGet, "/remote/view/npm-proxy", "text/html")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		body := w.Body.String()
		for _, want := range []string{`data-template="/partials/remote-detail.html"`, `data-controller="RemoteDetailCtl"`} {
			if !strings.Contains(body, want) {
				t.Errorf("body missing %q", want)
			}
		}
	})

	t.Run("addon view", func(t *testing.T) {
		w := serve(a.engine, http.MethodGet, "/browse", "text/html")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if !strings.Contains(w.Body.String(), `data-template="/cp/layover/browse/list.html"`) {
			t.Errorf("body missing addon template URL:\n%s", w.Body.String())
		}
	})

	t.Run("store controllers", func(t *testing.T) {
		w := serve(a.engine, http.MethodGet, "/remote", "text/html")
		if !strings.Contains(w.Body.String(), `src="/static/js/stores.js"`) {
			t.Fatalf("view page does not load stores.js:\n%s", w.Body.String())
		}
		w = serve(a.engine, http.MethodGet, "/static/js/stores.js", "")
		if w.Code != http.StatusOK {
			t.Fatalf("stores.js status = %d", w.Code)
		}
		for _, want := range []string{`"ListCtl"`, `"DetailCtl"`, `"EditCtl"`, `"/api/v1/admin/"`} {
			if !strings.Contains(w.Body.String(), want) {
				t.Errorf("stores.js missing %s", want)
			}
		}
	})

	t.Run("store view fragment", func(t *testing.T) {
		w := serve(a.engine, http.MethodGet, "/partials/remote-list.html", "")
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "store-view") {
			t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
		}
	})

	t.Run("fallback", func(t *testing.T) {
		w := serve(a.engine, http.MethodGet, "/somewhere/else", "text/html")
		if w.Code != http.StatusFound || w.Header().Get("Location") != route.FallbackPath {
			t.Fatalf("status = %d, Location = %q", w.Code, w.Header().Get("Location"))
		}
	})

	t.Run("api 404", func(t *testing.T) {
		w := serve(a.engine, http.MethodGet, "/api/v1/unknown", "")
		if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"not found"`) {
			t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
		}
	})

	t.Run("route listing", func(t *testing.T) {
		w := serve(a.engine, http.MethodGet, "/api/v1/routes", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var resp struct {
			Data struct {
				Rules    []route.Rule    `json:"rules"`
				Fallback *route.Fallback `json:"fallback"`
			} `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(resp.Data.Rules) != 13 || resp.Data.Rules[0].Source != "addon:browse" {
			t.Errorf("rules = %+v", resp.Data.Rules)
		}
		if resp.Data.Fallback == nil || resp.Data.Fallback.RedirectTo != "/remote" {
			t.Errorf("fallback = %+v", resp.Data.Fallback)
		}
	})

	t.Run("manifest", func(t *testing.T) {
		w := serve(a.engine, http.MethodGet, "/api/v1/addons/manifest", "")
		var manifest route.Addons
		if err := json.Unmarshal(w.Body.Bytes(), &manifest); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if manifest.Len() != 1 || manifest.Items[0].Name != "browse" {
			t.Errorf("manifest = %+v", manifest)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		w := serve(a.engine, http.MethodGet, "/metrics", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		body := w.Body.String()
		for _, want := range []string{
			`layover_console_route_rules{source="builtin"} 12`,
			`layover_console_route_rules{source="addon:browse"} 1`,
			`layover_console_views_total{route="/browse",source="addon:browse"} 1`,
			`layover_console_fallback_redirects_total 1`,
		} {
			if !strings.Contains(body, want) {
				t.Errorf("metrics missing %q", want)
			}
		}
	})

	t.Run("health", func(t *testing.T) {
		if w := serve(a.engine, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})
}

func TestNew_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	a := newTestApp(t, cfg)

	w := serve(a.engine, http.MethodGet, "/metrics", "text/html")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want the fallback redirect once /metrics is a console path", w.Code)
	}
	if w := serve(a.engine, http.MethodGet, "/remote", "text/html"); w.Code != http.StatusOK {
		t.Fatalf("console view status = %d with metrics disabled", w.Code)
	}
}

// Registry edits are persisted but the running table stays as built.
func TestNew_RegistryChangesApplyOnRestart(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	body := `{"name":"promote","sections":[{"route":"/promote","templateHref":"promote/index.html"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/addons", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	a.engine.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	if w := serve(a.engine, http.MethodGet, "/promote", "text/html"); w.Code != http.StatusFound {
		t.Fatalf("running table changed: status = %d", w.Code)
	}

	table, err := LoadRouteTable(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("LoadRouteTable() error = %v", err)
	}
	if got := table.BySource(route.AddonSource("promote")); len(got) != 1 || got[0].Path != "/promote" {
		t.Errorf("reloaded table promote rules = %+v", got)
	}
	if table.Len() != 14 {
		t.Errorf("reloaded table has %d rules, want 14", table.Len())
	}
}

func TestRun_ReturnsError_WhenListenFails(t *testing.T) {
	originalNewHTTPServer := newHTTPServer
	originalNotifyContext := notifyContext
	defer func() {
		newHTTPServer = originalNewHTTPServer
		notifyContext = originalNotifyContext
	}()

	listenErr := errors.New("listen failed")
	var gotTimeout time.Duration
	newHTTPServer = func(_ string, _ http.Handler, timeout time.Duration) httpServer {
		gotTimeout = timeout
		return &fakeHTTPServer{listenErr: listenErr}
	}
	notifyContext = func(context.Context, ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(context.Background())
	}

	a := &App{
		engine: gin.New(),
		logger: logger.Default(),
		cfg:    &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080}},
	}

	err := a.Run()
	if !errors.Is(err, listenErr) || !strings.Contains(err.Error(), "server error") {
		t.Fatalf("Run() error = %v, want server error wrapping %v", err, listenErr)
	}
	if gotTimeout != 60*time.Second {
		t.Errorf("write timeout = %v, want 60s default", gotTimeout)
	}
}

func TestRun_ShutdownSignal_ClosesDatabase(t *testing.T) {
	originalNewHTTPServer := newHTTPServer
	originalNotifyContext := notifyContext
	defer func() {
		newHTTPServer = originalNewHTTPServer
		notifyContext = originalNotifyContext
	}()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "run.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB() error = %v", err)
	}

	server := &fakeHTTPServer{listenStarted: make(chan struct{}), stopCh: make(chan struct{})}
	newHTTPServer = func(string, http.Handler, time.Duration) httpServer {
		return server
	}

	ctx, cancel := context.WithCancel(context.Background())
	notifyContext = func(context.Context, ...os.Signal) (context.Context, context.CancelFunc) {
		return ctx, cancel
	}

	a := &App{
		engine: gin.New(),
		db:     db,
		logger: logger.Default(),
		cfg:    &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, Timeout: "15s"}},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run()
	}()

	select {
	case <-server.listenStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start listening in time")
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return in time after shutdown signal")
	}

	if !server.wasShutdownCalled() {
		t.Fatal("expected server Shutdown() to be called")
	}
	if pingErr := sqlDB.Ping(); pingErr == nil {
		t.Fatal("expected database connection to be closed, but Ping() succeeded")
	}
}

func TestRun_NilGuards(t *testing.T) {
	var nilApp *App
	if err := nilApp.Run(); err == nil {
		t.Error("nil app should fail")
	}
	if err := (&App{}).Run(); err == nil {
		t.Error("app without config should fail")
	}
	if err := (&App{cfg: &config.Config{}}).Run(); err == nil {
		t.Error("app without engine should fail")
	}
}
