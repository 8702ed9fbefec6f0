package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"market-alerts/internal/domain"
)

const probeTimeout = 3 * time.Second

// Probe — именованная проверка готовности внешней зависимости.
type Probe struct {
	Name  string
	Check domain.ReadinessProbe
}

// PingProbe превращает функцию проверки соединения в domain.ReadinessProbe.
type PingProbe func(ctx context.Context) error

// IsReady реализует domain.ReadinessProbe.
func (f PingProbe) IsReady(ctx context.Context) (bool, error) {
	if err := f(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Server оборачивает chi.Router с базовыми middlewares.
type Server struct {
	Router chi.Router
	log    zerolog.Logger
	stats  func() any
	probes []Probe
	srv    *http.Server
}

// NewServer создаёт HTTP сервер с /healthz, /readyz и /metrics на addr.
// stats попадает в ответ /healthz и может быть nil.
func NewServer(logger zerolog.Logger, addr string, stats func() any, probes ...Probe) *Server {
	s := &Server{log: logger.With().Str("component", "http").Logger(), stats: stats, probes: probes}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.Router = r
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.stats != nil {
		body["cache"] = s.stats()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.probes))
	for _, p := range s.probes {
		ready, err := p.Check.IsReady(ctx)
		switch {
		case err != nil:
			checks[p.Name] = err.Error()
			status = http.StatusServiceUnavailable
		case !ready:
			checks[p.Name] = "not ready"
			status = http.StatusServiceUnavailable
		default:
			checks[p.Name] = "ok"
		}
	}
	if status != http.StatusOK {
		s.log.Warn().Interface("checks", checks).Msg("http: readiness check failed")
	}
	writeJSON(w, status, map[string]any{"ready": status == http.StatusOK, "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Start запускает http.Server и блокируется до его остановки.
// После Shutdown, в том числе вызванного раньше Start, возвращает nil.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http: server started")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown корректно завершает работу сервера.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
