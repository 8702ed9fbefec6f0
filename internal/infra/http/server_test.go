package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type staticProbe struct {
	ready bool
	err   error
}

func (p staticProbe) IsReady(context.Context) (bool, error) { return p.ready, p.err }

func TestHealthzIncludesStats(t *testing.T) {
	s := NewServer(zerolog.Nop(), ":0", func() any { return map[string]int{"news": 3} })
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status string         `json:"status"`
		Cache  map[string]int `json:"cache"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Cache["news"] != 3 {
		t.Fatalf("неожиданный ответ %s", rec.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name   string
		probes []Probe
		want   int
	}{
		{name: "no probes", want: http.StatusOK},
		{name: "all ready", probes: []Probe{{Name: "whatsapp", Check: staticProbe{ready: true}}}, want: http.StatusOK},
		{name: "not connected", probes: []Probe{{Name: "whatsapp", Check: staticProbe{}}}, want: http.StatusServiceUnavailable},
		{name: "ping error", probes: []Probe{
			{Name: "whatsapp", Check: staticProbe{ready: true}},
			{Name: "postgres", Check: PingProbe(func(context.Context) error { return errors.New("refused") })},
		}, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(zerolog.Nop(), ":0", nil, tt.probes...)
			rec := httptest.NewRecorder()
			s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(zerolog.Nop(), ":0", nil)
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestShutdownBeforeStartStopsServer(t *testing.T) {
	s := NewServer(zerolog.Nop(), "127.0.0.1:0", nil)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start после Shutdown должен вернуть nil, получили %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("сервер продолжил слушать после Shutdown")
	}
}

func TestStartThenShutdown(t *testing.T) {
	s := NewServer(zerolog.Nop(), "127.0.0.1:0", nil)
	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Shutdown может прийти до или после ListenAndServe, оба случая завершают Start
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start не завершился после Shutdown")
	}
}
