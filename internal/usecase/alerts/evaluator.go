// Package alerts кэширует новости и котировки и решает, когда отправлять алерт.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"market-alerts/internal/domain"
	"market-alerts/internal/infra/metrics"
)

// Значения по умолчанию для Config.
const (
	DefaultBufferSize = 10
	DefaultMinNews    = 3
)

// DefaultTopics — широкие рыночные темы, по активности которых срабатывают алерты.
var DefaultTopics = []string{"stock market", "nasdaq", "dow jones", "S&P 500"}

// Sender — часть менеджера сообщений, которая нужна для отправки алертов.
type Sender interface {
	Send(ctx context.Context, recipient domain.MessageRecipient, content domain.MessageContent, opts domain.SendOptions) []domain.MessageResult
}

// Config задаёт параметры кэша новостей и условия срабатывания.
type Config struct {
	Topics     []string
	MinNews    int
	BufferSize int
}

// Stats — размеры кэшей.
type Stats struct {
	Topics   int       `json:"topics"`
	News     int       `json:"news"`
	Symbols  int       `json:"symbols"`
	LastPass time.Time `json:"last_pass"`
}

type bufferedNews struct {
	event     domain.NewsEvent
	sentiment domain.SentimentResult
}

// Evaluator владеет кэшами событий и запускает проверку условий после каждого события.
// HandleNews и HandlePrice выполняются строго по одному.
type Evaluator struct {
	logger    zerolog.Logger
	watchlist domain.WatchlistRepo
	history   domain.AlertHistoryRepo
	news      domain.NewsRepo
	scorer    domain.SentimentScorer
	sender    Sender
	cfg       Config
	topics    map[string]struct{}
	now       func() time.Time

	mu       sync.Mutex
	byTopic  map[string][]bufferedNews
	prices   map[string]domain.PriceEvent
	lastPass time.Time
}

// NewEvaluator создаёт evaluator. news и scorer могут быть nil.
func NewEvaluator(logger zerolog.Logger, watchlist domain.WatchlistRepo, history domain.AlertHistoryRepo, news domain.NewsRepo, scorer domain.SentimentScorer, sender Sender, cfg Config) *Evaluator {
	if len(cfg.Topics) == 0 {
		cfg.Topics = DefaultTopics
	}
	if cfg.MinNews <= 0 {
		cfg.MinNews = DefaultMinNews
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	topics := make(map[string]struct{}, len(cfg.Topics))
	for _, t := range cfg.Topics {
		topics[strings.TrimSpace(t)] = struct{}{}
	}
	return &Evaluator{
		logger:    logger.With().Str("component", "alerts").Logger(),
		watchlist: watchlist,
		history:   history,
		news:      news,
		scorer:    scorer,
		sender:    sender,
		cfg:       cfg,
		topics:    topics,
		now:       time.Now,
		byTopic:   make(map[string][]bufferedNews),
		prices:    make(map[string]domain.PriceEvent),
	}
}

// HandleNews добавляет новость в буфер её темы и запускает проверку условий.
// Ошибка означает, что проверку провести не удалось; кэш при этом уже обновлён.
func (e *Evaluator) HandleNews(ctx context.Context, news domain.NewsEvent) error {
	if err := news.Validate(); err != nil {
		return err
	}

	var sentiment domain.SentimentResult
	if e.scorer != nil {
		sentiment = e.scorer.ScoreNews(news.Title, news.Description)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	buf := append(e.byTopic[news.Topic], bufferedNews{event: news, sentiment: sentiment})
	if over := len(buf) - e.cfg.BufferSize; over > 0 {
		buf = append(buf[:0:0], buf[over:]...)
	}
	e.byTopic[news.Topic] = buf

	if e.news != nil {
		if err := e.news.SaveNewsSentiment(ctx, news, sentiment); err != nil {
			e.logger.Warn().Err(err).Str("url", news.URL).Msg("alerts: save news sentiment failed")
		}
	}

	e.logger.Debug().Str("topic", news.Topic).Int("buffered", len(buf)).Str("sentiment", string(sentiment.Label)).Msg("alerts: news cached")
	return e.checkTriggers(ctx)
}

// HandlePrice заменяет котировку инструмента и запускает проверку условий.
func (e *Evaluator) HandlePrice(ctx context.Context, price domain.PriceEvent) error {
	if err := price.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.prices[price.Symbol] = price
	e.logger.Debug().Str("symbol", price.Symbol).Float64("change", price.ChangePercent).Msg("alerts: price cached")
	return e.checkTriggers(ctx)
}

// HasRelevantNewsActivity сообщает, набрала ли хотя бы одна рыночная тема MinNews новостей.
func (e *Evaluator) HasRelevantNewsActivity() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasRelevantNewsActivity()
}

// Stats возвращает размеры кэшей.
func (e *Evaluator) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{Topics: len(e.byTopic), Symbols: len(e.prices), LastPass: e.lastPass}
	for _, buf := range e.byTopic {
		s.News += len(buf)
	}
	return s
}

func (e *Evaluator) hasRelevantNewsActivity() bool {
	for topic := range e.topics {
		if len(e.byTopic[topic]) >= e.cfg.MinNews {
			return true
		}
	}
	return false
}

func (e *Evaluator) marketSentiment() MarketSentiment {
	var s MarketSentiment
	var total float64
	for topic := range e.topics {
		for _, n := range e.byTopic[topic] {
			total += n.sentiment.Score
			s.Count++
		}
	}
	if s.Count > 0 {
		s.Score = total / float64(s.Count)
	}
	s.Label = domain.LabelForScore(s.Score)
	return s
}

// checkTriggers вызывается под e.mu.
func (e *Evaluator) checkTriggers(ctx context.Context) error {
	start := e.now()
	defer func() {
		metrics.TriggerPassSeconds.Observe(time.Since(start).Seconds())
		e.lastPass = start
	}()

	entries, err := e.watchlist.ListWatchlist(ctx)
	if err != nil {
		return fmt.Errorf("чтение watchlist: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	active := e.hasRelevantNewsActivity()
	for _, entry := range entries {
		price, ok := e.prices[entry.StockSymbol]
		if !ok {
			continue
		}
		if absFloat(price.ChangePercent) < entry.MinPriceChangePercent || !active {
			continue
		}
		e.trigger(ctx, entry, price)
	}
	return nil
}

func (e *Evaluator) trigger(ctx context.Context, entry domain.WatchlistEntry, price domain.PriceEvent) {
	metrics.IncAlert(entry.StockSymbol)
	content := BuildAlertContent(price, e.marketSentiment())
	logger := e.logger.With().Int64("user", entry.UserID).Str("symbol", entry.StockSymbol).Logger()

	// начатую отправку не прерываем при остановке сервиса
	dispatchCtx := context.WithoutCancel(ctx)
	results := e.sender.Send(dispatchCtx, entry.Recipient(), content, domain.DefaultSendOptions())

	delivered := 0
	for _, res := range results {
		if !res.Success {
			continue
		}
		delivered++
		record := domain.AlertRecord{
			UserID:       entry.UserID,
			StockSymbol:  entry.StockSymbol,
			ProviderName: res.ProviderName,
			Title:        content.Subject,
			Message:      content.Metadata[MetadataText],
			CreatedAt:    e.now().UTC(),
		}
		if err := e.history.SaveAlert(dispatchCtx, record); err != nil {
			logger.Error().Err(err).Str("provider", res.ProviderName).Msg("alerts: save alert history failed")
		}
	}

	if delivered == 0 {
		metrics.AlertsUndelivered.Inc()
		logger.Error().Int("attempts", len(results)).Msg("alerts: alert not delivered by any provider")
		return
	}
	logger.Info().Int("delivered", delivered).Float64("change", price.ChangePercent).Msg("alerts: alert sent")
}
