package domain

import "time"

// NewsEvent описывает новость, опубликованную сборщиком новостей.
type NewsEvent struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt Timestamp `json:"published_at"`
	Topic       string    `json:"topic"`
	FetchedAt   Timestamp `json:"fetched_at"`
}

// Validate проверяет обязательные поля новости.
func (n NewsEvent) Validate() error {
	if n.URL == "" {
		return invalidEvent("news: empty url")
	}
	if n.Topic == "" {
		return invalidEvent("news: empty topic")
	}
	return nil
}

// PriceEvent описывает последнюю котировку инструмента.
type PriceEvent struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	MarketCap     int64     `json:"marketCap"`
	Timestamp     Timestamp `json:"timestamp"`
}

// Validate проверяет обязательные поля котировки.
func (p PriceEvent) Validate() error {
	if p.Symbol == "" {
		return invalidEvent("price: empty symbol")
	}
	return nil
}

// WatchlistEntry — подписка пользователя на инструмент вместе с контактами пользователя.
type WatchlistEntry struct {
	UserID                int64
	UserEmail             string
	UserName              string
	UserPhone             string
	UserChatHandle        string
	UserTelegramChatID    int64
	StockSymbol           string
	MinPriceChangePercent float64
}

// Recipient собирает получателя уведомления из строки watchlist.
func (w WatchlistEntry) Recipient() MessageRecipient {
	return MessageRecipient{
		ID:             formatUserID(w.UserID),
		Name:           w.UserName,
		Email:          w.UserEmail,
		Phone:          w.UserPhone,
		ChatHandle:     w.UserChatHandle,
		TelegramChatID: w.UserTelegramChatID,
	}
}

// AlertRecord — запись истории отправленных алертов.
type AlertRecord struct {
	ID           string
	UserID       int64
	StockSymbol  string
	ProviderName string
	Title        string
	Message      string
	CreatedAt    time.Time
}

// SentimentLabel — итоговая тональность текста.
type SentimentLabel string

const (
	// SentimentPositive — позитивная тональность.
	SentimentPositive SentimentLabel = "positive"
	// SentimentNegative — негативная тональность.
	SentimentNegative SentimentLabel = "negative"
	// SentimentNeutral — нейтральная тональность.
	SentimentNeutral SentimentLabel = "neutral"
)

// Границы нейтральной зоны оценки тональности.
const (
	PositiveSentimentThreshold = 0.2
	NegativeSentimentThreshold = -0.2
)

// LabelForScore переводит оценку из [-1, 1] в метку тональности.
func LabelForScore(score float64) SentimentLabel {
	switch {
	case score > PositiveSentimentThreshold:
		return SentimentPositive
	case score < NegativeSentimentThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// SentimentResult содержит оценку тональности.
type SentimentResult struct {
	Score      float64        `json:"score"`
	Label      SentimentLabel `json:"label"`
	Confidence float64        `json:"confidence"`
}
