package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/devskill-org/pvforecast/series"
)

// Server exposes a Forecaster over HTTP and pushes the current estimate to
// WebSocket clients.
type Server struct {
	forecaster   *Forecaster
	server       *http.Server
	router       *mux.Router
	port         int
	pushInterval time.Duration
	startTime    time.Time
	upgrader     websocket.Upgrader
	clients      sync.Map
	broadcast    chan []byte
	done         chan struct{}
	logger       *zap.SugaredLogger
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string     `json:"status"`
	Timestamp string     `json:"timestamp"`
	Version   string     `json:"version,omitempty"`
	Uptime    string     `json:"uptime"`
	Cache     CacheStats `json:"cache"`
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates the HTTP API on port. It returns nil when port is not
// positive, which disables the server.
func NewServer(f *Forecaster, port int, pushInterval time.Duration, logger *zap.SugaredLogger) *Server {
	if port <= 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if pushInterval <= 0 {
		pushInterval = 10 * time.Second
	}

	s := &Server{
		forecaster:   f,
		router:       mux.NewRouter(),
		port:         port,
		pushInterval: pushInterval,
		startTime:    time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		logger:    logger,
	}

	s.routes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/health", s.healthHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/api/config", s.configHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/api/cache", s.clearCacheHandler).Methods(http.MethodDelete)

	s.router.HandleFunc("/api/forecast", s.forecastHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/api/forecast/today", s.todayHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/api/forecast/now", s.nowHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/api/forecast/at", s.atHandler).Methods(http.MethodGet)

	s.router.HandleFunc("/api/clearsky", s.clearskyHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/api/ws", s.wsHandler)
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the web server
func (s *Server) Start() error {
	if s == nil {
		return nil
	}

	go s.handleBroadcasts()
	go s.broadcastEstimates()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("web server error", "error", err)
		}
	}()

	s.logger.Infow("web server started", "port", s.port)
	return nil
}

// Stop gracefully stops the web server
func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}

	close(s.done)

	s.clients.Range(func(key, value any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})

	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
		Uptime:    formatUptime(time.Since(s.startTime)),
		Cache:     s.forecaster.CacheStats(),
	})
}

func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.forecaster.Config())
}

func (s *Server) clearCacheHandler(w http.ResponseWriter, r *http.Request) {
	s.forecaster.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// forecastHandler serves the default forecast, or the [start, end] part of
// it when either bound is given.
func (s *Server) forecastHandler(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.intervalParams(w, r)
	if !ok {
		return
	}

	var (
		result *series.Series
		err    error
	)
	if start.IsZero() && end.IsZero() {
		result, err = s.forecaster.DefaultForecast(r.Context())
	} else {
		if start.IsZero() {
			start = time.Unix(0, 0)
		}
		if end.IsZero() {
			end = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
		}
		result, err = s.forecaster.ForecastForInterval(r.Context(), start, end)
	}
	s.writeSeries(w, r, result, err)
}

func (s *Server) todayHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.forecaster.ForecastToday(r.Context())
	s.writeSeries(w, r, result, err)
}

func (s *Server) nowHandler(w http.ResponseWriter, r *http.Request) {
	est, ok, err := s.forecaster.ForecastNow(r.Context())
	s.writeEstimate(w, est, ok, err)
}

func (s *Server) atHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("time")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required parameter: time"})
		return
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid time %q: expected RFC3339", raw)})
		return
	}

	est, ok, err := s.forecaster.ForecastAt(r.Context(), t)
	s.writeEstimate(w, est, ok, err)
}

// clearskyHandler serves a clear-sky estimate. Without bounds it covers the
// default forecast window.
func (s *Server) clearskyHandler(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.intervalParams(w, r)
	if !ok {
		return
	}

	timestep := 0
	if raw := r.URL.Query().Get("timestep"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid timestep %q: expected positive minutes", raw)})
			return
		}
		timestep = n
	}

	var (
		result *series.Series
		err    error
	)
	switch {
	case start.IsZero() && end.IsZero() && timestep == 0:
		result, err = s.forecaster.DefaultClearskyEstimate(r.Context())
	case start.IsZero() || end.IsZero():
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "start and end must be given together"})
		return
	default:
		result, err = s.forecaster.ClearskyEstimateForInterval(r.Context(), start, end, timestep)
	}
	s.writeSeries(w, r, result, err)
}

// intervalParams parses optional RFC3339 start and end parameters. Zero
// values mean the bound was not given.
func (s *Server) intervalParams(w http.ResponseWriter, r *http.Request) (start, end time.Time, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"start", &start}, {"end", &end}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid %s %q: expected RFC3339", p.name, raw)})
			return time.Time{}, time.Time{}, false
		}
		*p.dst = t
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "end must not be before start"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (s *Server) writeSeries(w http.ResponseWriter, r *http.Request, result *series.Series, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	if localTime, _ := strconv.ParseBool(r.URL.Query().Get("local_time")); localTime {
		result = s.forecaster.AddLocalTime(result)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeEstimate(w http.ResponseWriter, est Estimate, ok bool, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "requested time is outside the published forecast"})
		return
	}
	writeJSON(w, http.StatusOK, est)
}

// writeError maps forecaster errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		missing     *ConfigurationMissingError
		unavailable *DataUnavailableError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &missing):
		status = http.StatusPreconditionFailed
	case errors.As(err, &unavailable):
		status = http.StatusServiceUnavailable
	default:
		s.logger.Errorw("forecast request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// wsClient serializes writes to one connection; websocket.Conn supports a
// single concurrent writer.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) write(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// wsHandler handles WebSocket connections
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	client := &wsClient{conn: conn}

	// the first estimate is written before the client can receive broadcasts
	if msg, err := s.buildEstimateMessage(r.Context()); err == nil {
		if err := client.write(msg); err != nil {
			s.logger.Warnw("failed to send initial estimate", "error", err)
		}
	}

	s.clients.Store(conn, client)
	s.logger.Debugw("websocket client connected", "clients", s.clientCount())

	defer func() {
		s.clients.Delete(conn)
		conn.Close()
		s.logger.Debugw("websocket client disconnected", "clients", s.clientCount())
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warnw("websocket error", "error", err)
			}
			break
		}
	}
}

func (s *Server) clientCount() int {
	n := 0
	s.clients.Range(func(key, value any) bool {
		n++
		return true
	})
	return n
}

// handleBroadcasts sends messages to all connected clients
func (s *Server) handleBroadcasts() {
	for {
		select {
		case message := <-s.broadcast:
			s.clients.Range(func(key, value any) bool {
				client, ok := value.(*wsClient)
				if !ok {
					return true
				}
				if err := client.write(message); err != nil {
					s.logger.Warnw("websocket write failed", "error", err)
					client.conn.Close()
					s.clients.Delete(key)
				}
				return true
			})
		case <-s.done:
			return
		}
	}
}

// broadcastEstimates pushes the current estimate every push interval while
// any client is connected.
func (s *Server) broadcastEstimates() {
	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.clientCount() == 0 {
				continue
			}
			msg, err := s.buildEstimateMessage(context.Background())
			if err != nil {
				s.logger.Warnw("failed to build estimate update", "error", err)
				continue
			}
			s.broadcast <- msg
		case <-s.done:
			return
		}
	}
}

// estimateMessage is pushed to WebSocket clients.
type estimateMessage struct {
	Type      string    `json:"type"`
	Timestamp string    `json:"timestamp"`
	Estimate  *Estimate `json:"estimate,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func (s *Server) buildEstimateMessage(ctx context.Context) ([]byte, error) {
	msg := estimateMessage{
		Type:      "estimate_update",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	est, ok, err := s.forecaster.ForecastNow(ctx)
	switch {
	case err != nil:
		msg.Error = err.Error()
	case ok:
		msg.Estimate = &est
	}
	return json.Marshal(msg)
}

// formatUptime formats a duration as a string with seconds rounded to integer
func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
