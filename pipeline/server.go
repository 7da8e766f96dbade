package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/matteodefelice/pypsa-entsoe/report"
)

// WebServer exposes health, status and metrics endpoints and pushes run
// updates to websocket clients. In serve mode it also re-runs the pipeline
// on the configured interval.
type WebServer struct {
	runner    *Runner
	log       zerolog.Logger
	server    *http.Server
	startTime time.Time
	refresh   time.Duration
	upgrader  websocket.Upgrader
	clients   sync.Map
	broadcast chan []byte
	done      chan struct{}

	mu      sync.RWMutex
	lastRun *RunResult
	lastErr error
	running bool
}

// HealthResponse is the /api/health payload.
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Pipeline  PipelineHealth `json:"pipeline"`
	System    SystemHealth   `json:"system"`
}

// PipelineHealth reports the state of the periodic run loop.
type PipelineHealth struct {
	Running       bool       `json:"running"`
	LastRunID     string     `json:"last_run_id,omitempty"`
	LastFinished  *time.Time `json:"last_finished,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	RefreshPeriod string     `json:"refresh_period"`
}

// SystemHealth reports process-level information.
type SystemHealth struct {
	Uptime string `json:"uptime"`
}

// NewWebServer creates the server. Port 0 disables it and returns nil,
// which Start and Stop tolerate.
func NewWebServer(runner *Runner, log zerolog.Logger) *WebServer {
	cfg := runner.cfg
	if cfg.Server.Port <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	ws := &WebServer{
		runner:    runner,
		log:       log,
		startTime: time.Now(),
		refresh:   cfg.Server.RefreshInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	mux.HandleFunc("/api/health", ws.healthHandler)
	mux.HandleFunc("/api/ready", ws.readinessHandler)
	mux.HandleFunc("/api/status", ws.statusHandler)
	mux.HandleFunc("/api/runs/latest", ws.latestRunHandler)
	mux.HandleFunc("/api/dispatch", ws.dispatchHandler)
	mux.HandleFunc("/api/ws", ws.wsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	return ws
}

// Start launches the HTTP listener, the broadcast fan-out and the periodic
// run loop.
func (ws *WebServer) Start(ctx context.Context) error {
	if ws == nil {
		return nil
	}

	go ws.handleBroadcasts()
	go ws.runLoop(ctx)

	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.log.Error().Err(err).Msg("web server failed")
		}
	}()
	return nil
}

// Stop closes the websocket clients and shuts the listener down.
func (ws *WebServer) Stop(ctx context.Context) error {
	if ws == nil {
		return nil
	}

	close(ws.done)
	ws.clients.Range(func(key, value any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})
	return ws.server.Shutdown(ctx)
}

// runLoop executes the pipeline immediately and then on every refresh tick.
func (ws *WebServer) runLoop(ctx context.Context) {
	ws.runOnce(ctx)

	ticker := time.NewTicker(ws.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ws.runOnce(ctx)
		case <-ws.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (ws *WebServer) runOnce(ctx context.Context) {
	ws.mu.Lock()
	if ws.running {
		ws.mu.Unlock()
		return
	}
	ws.running = true
	ws.mu.Unlock()

	result, err := ws.runner.Run(ctx)

	ws.mu.Lock()
	ws.running = false
	ws.lastErr = err
	if err == nil {
		ws.lastRun = result
	}
	ws.mu.Unlock()

	if err != nil {
		ws.log.Error().Err(err).Msg("pipeline run failed")
	} else {
		ws.log.Info().Str("run_id", result.ID).Msg("pipeline run finished")
	}
	ws.broadcastStatus()
}

func (ws *WebServer) lastState() (lastRun *RunResult, running bool, lastErr error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.lastRun, ws.running, ws.lastErr
}

func (ws *WebServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := ws.buildHealth()
	w.Header().Set("Content-Type", "application/json")
	if health.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (ws *WebServer) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lastRun, _, _ := ws.lastState()
	ready := map[string]any{
		"ready":     lastRun != nil,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if lastRun == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(ready); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (ws *WebServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ws.buildStatusData()); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// latestRunHandler returns the metadata and summary of the last completed
// run, 404 before the first one.
func (ws *WebServer) latestRunHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lastRun, _, _ := ws.lastState()
	if lastRun == nil {
		http.Error(w, "No completed run", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{
		"id":          lastRun.ID,
		"started_at":  lastRun.StartedAt,
		"finished_at": lastRun.FinishedAt,
		"summary":     lastRun.Summary,
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// dispatchHandler returns the collapsed dispatch table of the last run.
func (ws *WebServer) dispatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lastRun, _, _ := ws.lastState()
	if lastRun == nil {
		http.Error(w, "No completed run", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := report.WriteJSON(w, lastRun.Rows); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (ws *WebServer) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ws.clients.Store(conn, true)
	ws.log.Debug().Int("clients", ws.clientCount()).Msg("websocket client connected")

	if err := conn.WriteJSON(ws.buildStatusData()); err != nil {
		ws.log.Warn().Err(err).Msg("websocket initial send failed")
	}

	defer func() {
		ws.clients.Delete(conn)
		conn.Close()
		ws.log.Debug().Int("clients", ws.clientCount()).Msg("websocket client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.log.Warn().Err(err).Msg("websocket read failed")
			}
			break
		}
	}
}

func (ws *WebServer) clientCount() int {
	count := 0
	ws.clients.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}

func (ws *WebServer) handleBroadcasts() {
	for {
		select {
		case message := <-ws.broadcast:
			ws.clients.Range(func(key, value any) bool {
				conn, ok := key.(*websocket.Conn)
				if !ok {
					return true
				}
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					ws.log.Warn().Err(err).Msg("websocket write failed")
					conn.Close()
					ws.clients.Delete(conn)
				}
				return true
			})
		case <-ws.done:
			return
		}
	}
}

// broadcastStatus pushes the current status to all connected clients.
func (ws *WebServer) broadcastStatus() {
	if ws.clientCount() == 0 {
		return
	}
	message, err := json.Marshal(ws.buildStatusData())
	if err != nil {
		ws.log.Error().Err(err).Msg("marshal status failed")
		return
	}
	select {
	case ws.broadcast <- message:
	case <-ws.done:
	}
}

func (ws *WebServer) buildHealth() HealthResponse {
	lastRun, running, lastErr := ws.lastState()

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Pipeline: PipelineHealth{
			Running:       running,
			RefreshPeriod: ws.refresh.String(),
		},
		System: SystemHealth{
			Uptime: formatUptime(time.Since(ws.startTime)),
		},
	}
	if lastRun != nil {
		health.Pipeline.LastRunID = lastRun.ID
		finished := lastRun.FinishedAt
		health.Pipeline.LastFinished = &finished
	}
	if lastErr != nil {
		health.Pipeline.LastError = lastErr.Error()
		health.Status = "unhealthy"
	}
	return health
}

func (ws *WebServer) buildStatusData() map[string]any {
	lastRun, _, _ := ws.lastState()

	status := map[string]any{
		"type":      "status_update",
		"health":    ws.buildHealth(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if lastRun != nil {
		status["run"] = map[string]any{
			"id":          lastRun.ID,
			"started_at":  lastRun.StartedAt,
			"finished_at": lastRun.FinishedAt,
			"summary":     lastRun.Summary,
		}
	}
	return status
}

// formatUptime renders a duration as 1h2m3s with seconds rounded.
func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
