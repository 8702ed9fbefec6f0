package domain

import (
	"context"
	"time"
)

// WatchlistRepo читает актуальный список подписок пользователей.
type WatchlistRepo interface {
	ListWatchlist(ctx context.Context) ([]WatchlistEntry, error)
}

// AlertHistoryRepo сохраняет историю отправленных алертов.
type AlertHistoryRepo interface {
	SaveAlert(ctx context.Context, record AlertRecord) error
}

// NewsRepo сохраняет оценку тональности новостей.
type NewsRepo interface {
	SaveNewsSentiment(ctx context.Context, news NewsEvent, sentiment SentimentResult) error
}

// SentimentScorer оценивает тональность текста.
type SentimentScorer interface {
	Score(text string) SentimentResult
	ScoreNews(title, description string) SentimentResult
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// EventQueue — источник событий с подтверждением доставки (at-least-once).
type EventQueue interface {
	Receive(ctx context.Context) ([]byte, AckFunc, error)
	Close() error
}

// AckFunc подтверждает успешную обработку или запрашивает повтор доставки.
type AckFunc func(success bool) error
