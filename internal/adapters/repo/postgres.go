package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"market-alerts/internal/domain"
	"market-alerts/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var (
	_ domain.WatchlistRepo    = (*Postgres)(nil)
	_ domain.AlertHistoryRepo = (*Postgres)(nil)
	_ domain.NewsRepo         = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, now: time.Now}
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

const listWatchlistQuery = `
SELECT u.id, u.email, COALESCE(u.name, ''), u.phone, u.whatsapp, u.telegram_chat_id,
       w.stock_symbol, w.min_price_change_percent
FROM watchlist w
JOIN users u ON u.id = w.user_id
ORDER BY w.user_id, w.stock_symbol
`

// ListWatchlist возвращает все подписки вместе с контактами пользователей.
func (p *Postgres) ListWatchlist(ctx context.Context) ([]domain.WatchlistEntry, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, listWatchlistQuery)
	metrics.ObserveNetworkRequest("postgres", "watchlist_list", "watchlist", start, err)
	if err != nil {
		return nil, fmt.Errorf("запрос watchlist: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanWatchlistEntry)
	if err != nil {
		return nil, fmt.Errorf("чтение watchlist: %w", err)
	}
	return entries, nil
}

func scanWatchlistEntry(row pgx.CollectableRow) (domain.WatchlistEntry, error) {
	var (
		e      domain.WatchlistEntry
		email  sql.NullString
		phone  sql.NullString
		chat   sql.NullString
		tgChat sql.NullInt64
	)
	if err := row.Scan(&e.UserID, &email, &e.UserName, &phone, &chat, &tgChat, &e.StockSymbol, &e.MinPriceChangePercent); err != nil {
		return domain.WatchlistEntry{}, err
	}
	e.UserEmail = email.String
	e.UserPhone = phone.String
	e.UserChatHandle = chat.String
	e.UserTelegramChatID = tgChat.Int64
	return e, nil
}

// SaveAlert сохраняет запись об отправленном алерте.
func (p *Postgres) SaveAlert(ctx context.Context, record domain.AlertRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = p.now().UTC()
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO alert_history (id, user_id, stock_symbol, provider_name, title, message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, record.ID, record.UserID, record.StockSymbol, record.ProviderName, record.Title, record.Message, record.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "alert_history_insert", "alert_history", start, err)
	if err != nil {
		return fmt.Errorf("сохранение истории алертов: %w", err)
	}
	return nil
}

// SaveNewsSentiment сохраняет новость с оценкой тональности. Повторная новость с тем же URL игнорируется.
func (p *Postgres) SaveNewsSentiment(ctx context.Context, news domain.NewsEvent, sentiment domain.SentimentResult) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var publishedAt sql.NullTime
	if !news.PublishedAt.IsZero() {
		publishedAt = sql.NullTime{Time: news.PublishedAt.Time, Valid: true}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO news_sentiment (url, title, source, topic, published_at, score, label, confidence, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (url) DO NOTHING
`, news.URL, news.Title, news.Source, news.Topic, publishedAt, sentiment.Score, string(sentiment.Label), sentiment.Confidence, p.now().UTC())
	metrics.ObserveNetworkRequest("postgres", "news_sentiment_insert", "news_sentiment", start, err)
	if err != nil {
		return fmt.Errorf("сохранение тональности новости: %w", err)
	}
	return nil
}

// Ping проверяет доступность БД.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	start := time.Now()
	err := p.pool.Ping(ctx)
	metrics.ObserveNetworkRequest("postgres", "ping", "pool", start, err)
	return err
}
