package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"market-alerts/internal/adapters/messaging"
	"market-alerts/internal/adapters/repo"
	"market-alerts/internal/adapters/sentiment"
	"market-alerts/internal/domain"
	"market-alerts/internal/infra/cache"
	"market-alerts/internal/infra/config"
	"market-alerts/internal/infra/db"
	apphttp "market-alerts/internal/infra/http"
	applog "market-alerts/internal/infra/log"
	"market-alerts/internal/infra/metrics"
	"market-alerts/internal/infra/queue"
	"market-alerts/internal/usecase/alerts"
	msgusecase "market-alerts/internal/usecase/messaging"
)

func main() {
	cfg := config.Load()
	logger := applog.ForService(applog.NewLogger(cfg.AppEnv, cfg.LogLevel), "alerter")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	if cfg.PGDSN == "" {
		logger.Fatal().Msg("alerter: не указан PG_DSN")
	}
	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("alerter: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var redisClient *redis.Client
	var dedup domain.Cache
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		dedup = cache.NewRedis(redisClient, "market-alerts:")
	} else {
		logger.Warn().Msg("alerter: REDIS_ADDR не задан, дедупликация новостей отключена")
	}

	configured, err := messaging.FromConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("alerter: не удалось создать провайдеров")
	}
	manager := msgusecase.NewManager(logger, cfg.Alerts.SendTimeout)
	for _, p := range configured.Providers {
		manager.RegisterProvider(p)
	}
	if len(configured.Providers) == 0 {
		logger.Warn().Msg("alerter: ни один провайдер не настроен, алерты не будут доставлены")
	}

	evaluator := alerts.NewEvaluator(logger, repoAdapter, repoAdapter, repoAdapter, sentiment.NewLexicon(), manager, alerts.Config{
		Topics:     cfg.Alerts.Topics,
		MinNews:    cfg.Alerts.MinNews,
		BufferSize: cfg.Alerts.NewsBuffer,
	})

	newsQueue, priceQueue := openQueues(cfg, redisClient, logger)
	defer newsQueue.Close()
	defer priceQueue.Close()

	probes := []apphttp.Probe{{Name: "postgres", Check: apphttp.PingProbe(repoAdapter.Ping)}}
	if configured.Chat != nil {
		probes = append(probes, apphttp.Probe{Name: messaging.ProviderWhatsApp, Check: configured.Chat})
	}
	server := apphttp.NewServer(logger, cfg.HTTPAddr, func() any { return evaluator.Stats() }, probes...)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("alerter: http server stopped")
		}
	}()

	consumers := []*consumer{
		newConsumer(sourceNews, logger, newsQueue, newsHandler(evaluator, dedup, cfg.Alerts.NewsDedupTTL, logger)),
		newConsumer(sourcePrice, logger, priceQueue, priceHandler(evaluator)),
	}
	var wg sync.WaitGroup
	for _, c := range consumers {
		wg.Add(1)
		go func(c *consumer) {
			defer wg.Done()
			c.Run(ctx)
		}(c)
	}

	logger.Info().Strs("providers", providerNames(configured.Providers)).Msg("alerter: запуск обработки событий")
	<-ctx.Done()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("alerter: http shutdown failed")
	}
	logger.Info().Msg("alerter: остановлен")
}

func openQueues(cfg config.AppConfig, redisClient *redis.Client, logger zerolog.Logger) (domain.EventQueue, domain.EventQueue) {
	if cfg.Queue.Backend == config.QueueRedis {
		if redisClient == nil {
			logger.Fatal().Msg("alerter: QUEUE_BACKEND=redis требует REDIS_ADDR")
		}
		return queue.NewRedisQueue(redisClient, cfg.Queue.NewsQueue), queue.NewRedisQueue(redisClient, cfg.Queue.PriceQueue)
	}

	news, err := queue.NewRabbitConsumer(queue.RabbitConfig{
		URL:      cfg.Queue.RabbitURL,
		Exchange: cfg.Queue.NewsExchange,
		Queue:    cfg.Queue.NewsQueue,
		Prefetch: cfg.Queue.Prefetch,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("alerter: не удалось инициализировать очередь новостей")
	}
	prices, err := queue.NewRabbitConsumer(queue.RabbitConfig{
		URL:      cfg.Queue.RabbitURL,
		Exchange: cfg.Queue.PriceExchange,
		Queue:    cfg.Queue.PriceQueue,
		Prefetch: cfg.Queue.Prefetch,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("alerter: не удалось инициализировать очередь котировок")
	}
	return news, prices
}

func providerNames(providers []domain.MessagingProvider) []string {
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	return names
}
