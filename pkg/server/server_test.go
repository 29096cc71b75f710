package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadflow-hq/relay/pkg/config"
	"leadflow-hq/relay/pkg/telemetry/health"
)

func testConfig() (*config.ServerConfig, *config.TelemetryConfig) {
	cfg := config.Default()
	cfg.Server.ListenAddress = "127.0.0.1:0"
	return &cfg.Server, &cfg.Telemetry
}

func TestHandler_Routes(t *testing.T) {
	srvCfg, telCfg := testConfig()
	checker := health.New(time.Second)
	checker.RegisterCheck("store", func(context.Context) error { return errors.New("closed") })

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "relay_up 1\n")
	})
	h := New(srvCfg, telCfg, checker, WithMetricsHandler(metrics), WithVersion("1.0.0", "abc", "now")).Handler()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, telCfg.Health.LivenessPath, http.StatusOK},
		{http.MethodHead, telCfg.Health.LivenessPath, http.StatusOK},
		{http.MethodGet, telCfg.Health.ReadinessPath, http.StatusServiceUnavailable},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodGet, telCfg.Metrics.Path, http.StatusOK},
		{http.MethodPost, telCfg.Health.LivenessPath, http.StatusMethodNotAllowed},
		{http.MethodGet, "/rules", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("code = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandler_MetricsDisabled(t *testing.T) {
	srvCfg, telCfg := testConfig()
	telCfg.Metrics.Enabled = false

	h := New(srvCfg, telCfg, health.New(0), WithMetricsHandler(http.NotFoundHandler())).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, telCfg.Metrics.Path, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", rec.Code)
	}
}

func TestStart_ShutdownOnCancel(t *testing.T) {
	srvCfg, telCfg := testConfig()
	s := New(srvCfg, telCfg, health.New(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + s.Addr() + telCfg.Health.LivenessPath)
	if err != nil {
		t.Fatalf("GET liveness: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("liveness status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}
