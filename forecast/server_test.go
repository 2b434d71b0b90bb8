package forecast

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, f *Forecaster) *httptest.Server {
	t.Helper()
	s := NewServer(f, 8080, time.Second, nil)
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Failed to decode response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestNewServerDisabled(t *testing.T) {
	if s := NewServer(nil, 0, time.Second, nil); s != nil {
		t.Error("Expected nil server for port 0")
	}
	var s *Server
	if err := s.Start(); err != nil {
		t.Errorf("Start on nil server should be a no-op, got %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f, _, _ := newTestForecaster(t)
	ts := newTestServer(t, f)

	var health HealthResponse
	if status := getJSON(t, ts.URL+"/api/health", &health); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if health.Status != "healthy" {
		t.Errorf("Expected healthy, got %q", health.Status)
	}
	if !health.Cache.Enabled {
		t.Error("Expected cache to be reported as enabled")
	}
}

func TestForecastEndpoint(t *testing.T) {
	f, _, _ := newTestForecaster(t)
	ts := newTestServer(t, f)

	tests := []struct {
		name     string
		query    string
		wantRows int
	}{
		{"default window", "", 69},
		{"interval", "?start=2024-06-10T09:30:00Z&end=2024-06-10T12:30:00Z", 4},
		{"open end", "?start=2024-06-12T23:00:00Z", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []map[string]any
			if status := getJSON(t, ts.URL+"/api/forecast"+tt.query, &rows); status != http.StatusOK {
				t.Fatalf("Expected 200, got %d", status)
			}
			if len(rows) != tt.wantRows {
				t.Errorf("Expected %d rows, got %d", tt.wantRows, len(rows))
			}
			if len(rows) > 0 {
				if _, ok := rows[0]["output"]; !ok {
					t.Error("Expected output column")
				}
				if _, ok := rows[0]["ghi"]; ok {
					t.Error("Unexpected extended column ghi")
				}
			}
		})
	}
}

func TestForecastEndpointLocalTime(t *testing.T) {
	f, _, _ := newTestForecaster(t)
	if err := f.SetTimezone("Europe/Helsinki"); err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, f)

	var rows []map[string]any
	getJSON(t, ts.URL+"/api/forecast/today?local_time=true", &rows)
	if len(rows) == 0 {
		t.Fatal("Expected rows")
	}
	local, ok := rows[0]["local_time"].(string)
	if !ok {
		t.Fatalf("Expected local_time string, got %v", rows[0]["local_time"])
	}
	if !strings.Contains(local, "+03:00") {
		t.Errorf("Expected Helsinki summer offset in %q", local)
	}
}

func TestForecastEndpointErrors(t *testing.T) {
	f, weather, _ := newTestForecaster(t)
	ts := newTestServer(t, f)

	tests := []struct {
		name   string
		path   string
		setup  func()
		status int
	}{
		{"bad start", "/api/forecast?start=yesterday", nil, http.StatusBadRequest},
		{"end before start", "/api/forecast?start=2024-06-10T12:00:00Z&end=2024-06-10T10:00:00Z", nil, http.StatusBadRequest},
		{"at without time", "/api/forecast/at", nil, http.StatusBadRequest},
		{"at bad time", "/api/forecast/at?time=noon", nil, http.StatusBadRequest},
		{"at outside horizon", "/api/forecast/at?time=2012-01-01T00:00:00Z", nil, http.StatusNotFound},
		{"clearsky bad timestep", "/api/clearsky?timestep=-5", nil, http.StatusBadRequest},
		{"clearsky half interval", "/api/clearsky?start=2024-06-10T00:00:00Z", nil, http.StatusBadRequest},
		{"no data", "/api/forecast", func() { f.ClearCache(); weather.SetEmpty(true) }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			var body errorResponse
			if status := getJSON(t, ts.URL+tt.path, &body); status != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, status)
			}
			if body.Error == "" {
				t.Error("Expected error message in body")
			}
		})
	}
}

func TestForecastEndpointMissingConfiguration(t *testing.T) {
	f, err := NewForecaster(nil, &fakeWeather{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, f)

	var body errorResponse
	if status := getJSON(t, ts.URL+"/api/forecast/now", &body); status != http.StatusPreconditionFailed {
		t.Errorf("Expected 412, got %d", status)
	}
	if !strings.Contains(body.Error, "SetLocation") {
		t.Errorf("Expected hint to set the location, got %q", body.Error)
	}
}

func TestAtEndpoint(t *testing.T) {
	f, _, _ := newTestForecaster(t)
	ts := newTestServer(t, f)

	var est map[string]any
	if status := getJSON(t, ts.URL+"/api/forecast/at?time=2024-06-10T10:00:00Z", &est); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if est["time"] != "2024-06-10T10:00:00Z" {
		t.Errorf("Expected interpolated time, got %v", est["time"])
	}
	if _, ok := est["module_temp"].(float64); !ok {
		t.Errorf("Expected numeric module_temp, got %v", est["module_temp"])
	}
}

func TestClearskyEndpoint(t *testing.T) {
	f, _, _ := newTestForecaster(t)
	ts := newTestServer(t, f)

	var rows []map[string]any
	getJSON(t, ts.URL+"/api/clearsky", &rows)
	if len(rows) != 68 {
		t.Errorf("Expected 68 rows for the default window, got %d", len(rows))
	}

	rows = nil
	getJSON(t, ts.URL+"/api/clearsky?start=2024-06-10T10:00:00Z&end=2024-06-10T12:00:00Z&timestep=30", &rows)
	if len(rows) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(rows))
	}
	if rows[0]["time"] != "2024-06-10T10:30:00Z" {
		t.Errorf("Expected first row at the offset minute, got %v", rows[0]["time"])
	}
}

func TestConfigAndCacheEndpoints(t *testing.T) {
	f, weather, _ := newTestForecaster(t)
	ts := newTestServer(t, f)

	var config map[string]any
	getJSON(t, ts.URL+"/api/config", &config)
	if config["cache_refresh_interval"] != "1m0s" {
		t.Errorf("Expected duration string, got %v", config["cache_refresh_interval"])
	}
	if config["power_rating_kw"] != 5.0 {
		t.Errorf("Expected power 5, got %v", config["power_rating_kw"])
	}

	getJSON(t, ts.URL+"/api/forecast", nil)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/cache", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}

	getJSON(t, ts.URL+"/api/forecast", nil)
	if weather.Calls() != 2 {
		t.Errorf("Expected reload after clearing the cache, got %d calls", weather.Calls())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f, _, _ := newTestForecaster(t)
	ts := newTestServer(t, f)

	resp, err := http.Post(ts.URL+"/api/forecast", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
}

func TestWebSocketInitialEstimate(t *testing.T) {
	f, _, _ := newTestForecaster(t)
	ts := newTestServer(t, f)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg struct {
		Type     string         `json:"type"`
		Estimate map[string]any `json:"estimate"`
		Error    string         `json:"error"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}

	if msg.Type != "estimate_update" {
		t.Errorf("Expected estimate_update, got %q", msg.Type)
	}
	if msg.Error != "" {
		t.Errorf("Unexpected error: %s", msg.Error)
	}
	if msg.Estimate["time"] != "2024-06-10T09:10:00Z" {
		t.Errorf("Expected estimate at the current time, got %v", msg.Estimate["time"])
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 4*time.Second, "3m4s"},
		{2*time.Hour + 5*time.Minute + 1400*time.Millisecond, "2h5m1s"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.in); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWebSocketSlowEstimateWithBroadcasts(t *testing.T) {
	f, weather, _ := newTestForecaster(t)
	weather.delay = 50 * time.Millisecond
	f.SetCache(false)

	s := NewServer(f, 8080, 5*time.Millisecond, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	go s.handleBroadcasts()
	go s.broadcastEstimates()
	defer close(s.done)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()

			conn.SetReadDeadline(time.Now().Add(10 * time.Second))
			for range 3 {
				var msg struct {
					Type string `json:"type"`
				}
				if err := conn.ReadJSON(&msg); err != nil {
					errs <- err
					return
				}
				if msg.Type != "estimate_update" {
					errs <- fmt.Errorf("unexpected message type %q", msg.Type)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Client failed: %v", err)
	}
}
