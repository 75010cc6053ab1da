package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultStallAfter is how long a loop may go without ticking before the node reports unhealthy.
const DefaultStallAfter = 2 * time.Second

// HealthServer provides HTTP health and stats endpoints for a running node.
// The server runs in a background goroutine and can be gracefully shut down.
type HealthServer struct {
	server     *http.Server
	engine     *Engine
	stallAfter time.Duration
	now        func() time.Time
}

// HealthResponse represents the JSON response from the /healthz endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewHealthServer creates a health server for engine listening on addr (e.g. ":8080").
func NewHealthServer(engine *Engine, addr string) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		engine:     engine,
		stallAfter: DefaultStallAfter,
		now:        time.Now,
	}

	mux.HandleFunc("/healthz", hs.handleHealthz)
	mux.HandleFunc("/stats", hs.handleStats)

	return hs
}

// Handler returns the server's HTTP handler.
func (hs *HealthServer) Handler() http.Handler {
	return hs.server.Handler
}

// Start binds the listener and serves in a background goroutine.
// Returns an error if the address cannot be bound (e.g., port already in use).
func (hs *HealthServer) Start() error {
	ln, err := net.Listen("tcp", hs.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", hs.server.Addr, err)
	}

	go func() {
		log.Printf("[DEBUG] Health server starting on %s", ln.Addr())
		if err := hs.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[ERROR] Health server error: %v", err)
		}
		log.Printf("[DEBUG] Health server stopped")
	}()

	return nil
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight requests.
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	log.Printf("[DEBUG] Shutting down health server...")
	return hs.server.Shutdown(ctx)
}

// handleHealthz returns 200 if every loop ticked recently, 503 otherwise.
//
// Response format:
//   - Success: {"status": "healthy"}
//   - Failure: {"status": "unhealthy", "error": "stalled: renderer"}
func (hs *HealthServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "healthy"}
	statusCode := http.StatusOK

	if stalled := hs.engine.Stats().Stalled(hs.now(), hs.stallAfter); len(stalled) > 0 {
		response = HealthResponse{
			Status: "unhealthy",
			Error:  "stalled: " + strings.Join(stalled, ", "),
		}
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, response)
}

func (hs *HealthServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Stats
		State any `json:"state"`
	}{
		Stats: hs.engine.Stats(),
		State: hs.engine.Store().Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] Failed to encode health response: %v", err)
	}
}
