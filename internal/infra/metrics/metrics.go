package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	EventsConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_consumed_total",
		Help: "Количество обработанных событий по источнику и результату",
	}, []string{"source", "outcome"})

	AlertsTriggered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_triggered_total",
		Help: "Количество сработавших алертов по тикеру",
	}, []string{"symbol"})

	AlertsUndelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alerts_undelivered_total",
		Help: "Алерты, которые не удалось доставить ни одним провайдером",
	})

	TriggerPassSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trigger_pass_seconds",
		Help:    "Длительность прохода проверки условий алертов",
		Buckets: prometheus.DefBuckets,
	})

	ProviderSendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_send_duration_seconds",
		Help:    "Длительность попытки отправки через провайдера",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30},
	}, []string{"provider", "status"})

	ProviderSendTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_send_total",
		Help: "Количество попыток отправки через провайдера",
	}, []string{"provider", "status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		EventsConsumed,
		AlertsTriggered,
		AlertsUndelivered,
		TriggerPassSeconds,
		ProviderSendDuration,
		ProviderSendTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveProviderSend записывает попытку отправки через провайдера.
func ObserveProviderSend(provider string, start time.Time, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	ProviderSendDuration.WithLabelValues(provider, status).Observe(time.Since(start).Seconds())
	ProviderSendTotal.WithLabelValues(provider, status).Inc()
}

// IncEvent увеличивает счётчик обработанных событий.
func IncEvent(source, outcome string) {
	EventsConsumed.WithLabelValues(source, outcome).Inc()
}

// IncAlert увеличивает счётчик сработавших алертов.
func IncAlert(symbol string) {
	AlertsTriggered.WithLabelValues(symbol).Inc()
}
