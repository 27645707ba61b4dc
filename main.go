// Command citycurrent starts the CityCurrent grid server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// The server owns the simulation clock: every -tick-interval it advances each
// city whose scenario tick interval has elapsed. Cities are kept in files
// under -sessions-dir, or in SQLite/Postgres when -store is a DSN.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/citycurrent/api"
	"github.com/wricardo/citycurrent/game/config"
	"github.com/wricardo/citycurrent/game/service"
	"github.com/wricardo/citycurrent/game/session"
	"github.com/wricardo/citycurrent/transport/mcp"
	"github.com/wricardo/citycurrent/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "CityCurrent Grid Server"
)

// Configuration flags control how the server starts and which services are enabled.
var (
	port         = flag.Int("port", 8080, "HTTP server port")
	host         = flag.String("host", "localhost", "HTTP server host")
	configDir    = flag.String("config-dir", envDefault("CONFIG_DIR", "configs"), "Directory containing scenario files")
	sessionsDir  = flag.String("sessions-dir", envDefault("SESSIONS_DIR", "sessions"), "Directory for saved cities (file store)")
	store        = flag.String("store", os.Getenv("SESSION_STORE"), "Session store DSN: sqlite://path/to.db or postgres://... (default: files in -sessions-dir)")
	tickInterval = flag.Duration("tick-interval", 50*time.Millisecond, "Simulation clock resolution")
	saveInterval = flag.Duration("save-interval", 5*time.Second, "How often changed cities are written to the store")
	sessionTTL   = flag.Duration("session-ttl", 24*time.Hour, "Evict cities from memory after this long without access")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	version      = flag.Bool("version", false, "Show version information")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

// envDefault returns the environment variable key, or fallback when unset.
func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio, mcp   Aliases for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # Run on port 8080 with file storage\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -store sqlite://cities.db          # Keep cities in SQLite\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -store postgres://localhost/city   # Keep cities in Postgres\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp                          # Run MCP stdio server\n", os.Args[0])
	}
}

// services is everything the transports and background routines share.
type services struct {
	game     service.GameService
	sessions *session.Manager
	hub      *websocket.Hub
	closers  []io.Closer
}

func (s *services) Close() {
	if err := s.sessions.SaveAllSessions(); err != nil {
		log.Printf("Warning: %v", err)
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			log.Printf("Warning: Failed to close store: %v", err)
		}
	}
}

// main parses flags, initializes services, and starts the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	args := flag.Args()
	mode := "server"
	if len(args) > 0 {
		mode = args[0]
	}

	log.Printf("Starting %s v%s (mode: %s)", AppName, Version, mode)

	svc, err := initializeServices()
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	startBackground(ctx, &wg, svc)

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		runStdioMCPWithInternalServer(ctx, svc)
	case "server", "http":
		runHTTPServer(ctx, svc)
	default:
		log.Printf("Unknown mode: %s. Use 'server' (default) or 'stdio-mcp'", mode)
	}

	cancel()
	wg.Wait()
}

// initializeServices wires the config and session managers, the chosen
// store, the WebSocket hub and the game service.
func initializeServices() (*services, error) {
	configManager, err := config.NewManager(*configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	svc := &services{hub: websocket.NewHub()}

	var persistence session.SessionPersistence
	if *store != "" {
		sqlStore, err := session.OpenSQLStore(*store, configManager)
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		log.Printf("Using %s session store", sqlStore.Driver())
		persistence = sqlStore
		svc.closers = append(svc.closers, sqlStore)
	} else {
		filePersistence, err := session.NewFilePersistence(*sessionsDir, configManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		log.Printf("Using file session store in %s", *sessionsDir)
		persistence = filePersistence
	}

	svc.sessions = session.NewManagerWithPersistence(persistence)
	if err := svc.sessions.LoadPersistedSessions(); err != nil {
		log.Printf("Warning: Failed to load persisted sessions: %v", err)
	}

	svc.game = service.NewGameService(svc.sessions, configManager, service.WithNotifier(svc.hub))
	return svc, nil
}

// startBackground launches the hub and the periodic routines. They all stop
// when ctx is cancelled.
func startBackground(ctx context.Context, wg *sync.WaitGroup, svc *services) {
	routines := []func(context.Context){
		svc.hub.Run,
		func(ctx context.Context) { clockRoutine(ctx, svc.game, *tickInterval) },
		func(ctx context.Context) { saveRoutine(ctx, svc.sessions, *saveInterval) },
		func(ctx context.Context) { sessionCleanupRoutine(ctx, svc.sessions, *sessionTTL) },
	}

	for _, routine := range routines {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(routine)
	}
}

// clockRoutine drives the simulation. Each pass ticks only the cities whose
// scenario interval has elapsed; passes missed while busy are not replayed.
func clockRoutine(ctx context.Context, game service.GameService, resolution time.Duration) {
	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := game.TickAll(ctx, now); n > 0 && *debug {
				log.Printf("[TICK] advanced %d cities", n)
			}
		}
	}
}

// saveRoutine periodically writes changed cities to the store and drops
// cities whose record was deleted externally.
func saveRoutine(ctx context.Context, manager *session.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := manager.PruneOrphaned(); pruned > 0 {
				log.Printf("Store sync: pruned %d orphaned sessions from memory", pruned)
			}
			if _, err := manager.SaveDirty(); err != nil {
				log.Printf("Warning: %v", err)
			}
		}
	}
}

// sessionCleanupRoutine periodically evicts sessions that have not been
// accessed within ttl. Their saved record stays in the store.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, ttl time.Duration) {
	interval := time.Hour
	if ttl < interval {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(ttl); removed > 0 {
				log.Printf("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

// mcpHandler serves single JSON-RPC MCP messages over HTTP POST.
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter combines the REST API, WebSocket and /mcp endpoint.
func newRouter(svc *services, baseURL string) http.Handler {
	apiServer := api.NewServer(svc.game, svc.hub)
	apiServer.SetVersion(Version)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcp.NewClient(baseURL)))
	return mainRouter
}

// runHTTPServer serves until ctx is cancelled. If ngrok is enabled (via
// flag or environment), it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, svc *services) {
	addr := fmt.Sprintf("%s:%d", *host, *port)
	handler := newRouter(svc, fmt.Sprintf("http://%s", addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	if settings, ok := ngrokSettingsFromEnv(); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveNgrok(ctx, settings, handler)
		}()
	}

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")
}

type ngrokSettings struct {
	authToken string
	domain    string
}

// ngrokSettingsFromEnv resolves ngrok options from flags, then environment.
// It reports false when the tunnel is disabled or has no auth token.
func ngrokSettingsFromEnv() (ngrokSettings, bool) {
	enabled := *ngrokEnabled
	if env := os.Getenv("NGROK_ENABLED"); env == "true" || env == "1" {
		enabled = true
	}
	if !enabled {
		return ngrokSettings{}, false
	}

	settings := ngrokSettings{authToken: *ngrokAuth, domain: *ngrokDomain}
	if settings.authToken == "" {
		settings.authToken = envDefault("NGROK_AUTHTOKEN", os.Getenv("NGROK_AUTH_TOKEN"))
	}
	if settings.domain == "" {
		settings.domain = os.Getenv("NGROK_DOMAIN")
	}

	if settings.authToken == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return ngrokSettings{}, false
	}
	return settings, true
}

func serveNgrok(ctx context.Context, settings ngrokSettings, handler http.Handler) {
	log.Println("Starting ngrok tunnel...")

	tunnel := ngrokConfig.HTTPEndpoint()
	if settings.domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(settings.domain))
		log.Printf("Using custom ngrok domain: %s", settings.domain)
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(settings.authToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}

	ngrokURL := tun.URL()
	log.Printf("Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at http://localhost:8080; if unavailable, it
// starts an internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, svc *services) {
	externalURL := "http://localhost:8080"
	baseURL := externalURL
	log.Printf("Checking for external API server at %s...", externalURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Printf("External API server found at %s, using it for MCP", externalURL)
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Printf("Failed to get available port: %v", err)
			return
		}

		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())
		log.Printf("Starting internal HTTP server on %s for MCP stdio", listener.Addr())

		httpServer := &http.Server{Handler: newRouter(svc, baseURL)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Close()
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Printf("MCP stdio server ready (API at %s)", baseURL)

	done := make(chan error, 1)
	go func() {
		done <- server.ServeStdio(mcpClient.GetMCPServer())
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Printf("MCP stdio server error: %v", err)
		}
	case <-ctx.Done():
	}
}
