package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/citycurrent/transport/mcp"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}

	expectedAppName := "CityCurrent Grid Server"
	if AppName != expectedAppName {
		t.Errorf("Expected app name %s, got %s", expectedAppName, AppName)
	}
}

// withFlags points the storage flags at temporary locations for one test.
func withFlags(t *testing.T, storeDSN string) {
	t.Helper()
	origConfig, origSessions, origStore := *configDir, *sessionsDir, *store
	t.Cleanup(func() {
		*configDir, *sessionsDir, *store = origConfig, origSessions, origStore
	})

	*configDir = "configs"
	*sessionsDir = t.TempDir()
	*store = storeDSN
}

func TestInitializeServices(t *testing.T) {
	withFlags(t, "")

	svc, err := initializeServices()
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svc.Close()

	if svc.game == nil || svc.sessions == nil || svc.hub == nil {
		t.Fatal("Expected all services to be initialized")
	}
	if len(svc.closers) != 0 {
		t.Errorf("Expected no closers for file store, got %d", len(svc.closers))
	}
}

func TestInitializeServices_SQLite(t *testing.T) {
	withFlags(t, "sqlite://"+filepath.Join(t.TempDir(), "cities.db"))

	svc, err := initializeServices()
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	info, err := svc.game.CreateSession(context.Background(), "vancouver")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	svc.Close()

	// A second server on the same database sees the city.
	svc2, err := initializeServices()
	if err != nil {
		t.Fatalf("Failed to reopen services: %v", err)
	}
	defer svc2.Close()

	if _, err := svc2.game.GetSession(context.Background(), info.ID); err != nil {
		t.Errorf("Expected session %s after restart, got %v", info.ID, err)
	}
}

func TestInitializeServices_InvalidConfigDir(t *testing.T) {
	withFlags(t, "")
	*configDir = "/non/existent/path"

	if _, err := initializeServices(); err == nil {
		t.Error("Expected error for non-existent config directory")
	}
}

func TestInitializeServices_InvalidStore(t *testing.T) {
	withFlags(t, "mysql://localhost/city")

	if _, err := initializeServices(); err == nil {
		t.Error("Expected error for unsupported store DSN")
	}
}

func TestFlagDefaults(t *testing.T) {
	if *port <= 0 || *port > 65535 {
		t.Errorf("Invalid default port: %d", *port)
	}

	if *host == "" {
		t.Error("Host should have a default value")
	}

	if *tickInterval <= 0 || *saveInterval <= 0 || *sessionTTL <= 0 {
		t.Error("Intervals should be positive")
	}
}

func TestEnvDefault(t *testing.T) {
	t.Setenv("CITYCURRENT_TEST_VALUE", "from-env")

	if got := envDefault("CITYCURRENT_TEST_VALUE", "fallback"); got != "from-env" {
		t.Errorf("Expected from-env, got %s", got)
	}
	if got := envDefault("CITYCURRENT_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %s", got)
	}
}

func TestClockRoutineAdvancesCities(t *testing.T) {
	withFlags(t, "")

	svc, err := initializeServices()
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svc.Close()

	info, err := svc.game.CreateSession(context.Background(), "toronto")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		clockRoutine(ctx, svc.game, 10*time.Millisecond)
	}()

	deadline := time.Now().Add(3 * time.Second)
	var ticks uint64
	for time.Now().Before(deadline) {
		state, err := svc.game.GetState(context.Background(), info.ID)
		if err != nil {
			t.Fatalf("Failed to get state: %v", err)
		}
		if ticks = state.Ticks; ticks >= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	wg.Wait()

	if ticks < 2 {
		t.Errorf("Expected the clock to advance the city, got %d ticks", ticks)
	}
}

func TestNewRouter(t *testing.T) {
	withFlags(t, "")

	svc, err := initializeServices()
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svc.Close()

	router := newRouter(svc, "http://localhost:0")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), Version) {
		t.Errorf("Expected version in health response, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/mcp", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405 for GET /mcp, got %d", w.Code)
	}
}

func TestMCPHandlerInitialize(t *testing.T) {
	handler := mcpHandler(mcp.NewClient("http://localhost:0"))

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/mcp", bytes.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["result"] == nil {
		t.Fatalf("Expected result in response, got %v", resp)
	}
	if !strings.Contains(w.Body.String(), "CityCurrent") {
		t.Errorf("Expected server name in response, got %s", w.Body.String())
	}
}

func TestNgrokSettingsDisabled(t *testing.T) {
	t.Setenv("NGROK_ENABLED", "")

	if _, ok := ngrokSettingsFromEnv(); ok {
		t.Error("Expected ngrok to be disabled by default")
	}
}

func TestNgrokSettingsRequireToken(t *testing.T) {
	t.Setenv("NGROK_ENABLED", "true")
	t.Setenv("NGROK_AUTHTOKEN", "")
	t.Setenv("NGROK_AUTH_TOKEN", "")

	if _, ok := ngrokSettingsFromEnv(); ok {
		t.Error("Expected ngrok to stay off without a token")
	}

	t.Setenv("NGROK_AUTH_TOKEN", "tok")
	t.Setenv("NGROK_DOMAIN", "city.example.dev")

	settings, ok := ngrokSettingsFromEnv()
	if !ok {
		t.Fatal("Expected ngrok settings")
	}
	if settings.authToken != "tok" || settings.domain != "city.example.dev" {
		t.Errorf("Unexpected settings %+v", settings)
	}
}
