package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"market-alerts/internal/domain"
	"market-alerts/internal/infra/metrics"
)

const (
	sourceNews  = "news"
	sourcePrice = "price"

	defaultReceiveRetryDelay = time.Second
)

type eventSink interface {
	HandleNews(ctx context.Context, news domain.NewsEvent) error
	HandlePrice(ctx context.Context, price domain.PriceEvent) error
}

type handlerFunc func(ctx context.Context, payload []byte) error

// consumer читает одну очередь и обрабатывает события строго по одному.
type consumer struct {
	source     string
	log        zerolog.Logger
	queue      domain.EventQueue
	handle     handlerFunc
	retryDelay time.Duration
}

func newConsumer(source string, logger zerolog.Logger, q domain.EventQueue, handle handlerFunc) *consumer {
	return &consumer{
		source:     source,
		log:        logger.With().Str("component", "consumer").Str("source", source).Logger(),
		queue:      q,
		handle:     handle,
		retryDelay: defaultReceiveRetryDelay,
	}
}

// Run обрабатывает события до отмены ctx.
func (c *consumer) Run(ctx context.Context) {
	for {
		payload, ack, err := c.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn().Err(err).Msg("consumer: receive failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
			continue
		}
		c.process(ctx, payload, ack)
	}
}

func (c *consumer) process(ctx context.Context, payload []byte, ack domain.AckFunc) {
	err := c.handle(ctx, payload)
	success := true
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrMalformedEvent):
		outcome = "malformed"
		c.log.Warn().Err(err).Int("bytes", len(payload)).Msg("consumer: dropping malformed event")
	case ctx.Err() != nil:
		// при остановке сервиса событие возвращается в очередь
		outcome = "requeued"
		success = false
	default:
		outcome = "error"
		c.log.Error().Err(err).Msg("consumer: trigger pass failed")
	}
	metrics.IncEvent(c.source, outcome)

	if ackErr := ack(success); ackErr != nil {
		c.log.Error().Err(ackErr).Bool("success", success).Msg("consumer: ack failed")
	}
}

func decodeEvent(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	return nil
}

// newsHandler разбирает новость и передаёт её evaluator'у не более одного раза на URL.
func newsHandler(sink eventSink, dedup domain.Cache, ttl time.Duration, logger zerolog.Logger) handlerFunc {
	return func(ctx context.Context, payload []byte) error {
		var news domain.NewsEvent
		if err := decodeEvent(payload, &news); err != nil {
			return err
		}
		if err := news.Validate(); err != nil {
			return err
		}
		if dedup == nil {
			return sink.HandleNews(ctx, news)
		}

		var (
			called    bool
			handleErr error
		)
		err := dedup.Once(ctx, "news:"+news.URL, ttl, func() error {
			called = true
			handleErr = sink.HandleNews(ctx, news)
			return nil
		})
		if err != nil && !called {
			logger.Warn().Err(err).Str("url", news.URL).Msg("consumer: dedup unavailable, handling without it")
			return sink.HandleNews(ctx, news)
		}
		if !called {
			logger.Debug().Str("url", news.URL).Msg("consumer: duplicate news skipped")
		}
		return handleErr
	}
}

func priceHandler(sink eventSink) handlerFunc {
	return func(ctx context.Context, payload []byte) error {
		var price domain.PriceEvent
		if err := decodeEvent(payload, &price); err != nil {
			return err
		}
		return sink.HandlePrice(ctx, price)
	}
}
