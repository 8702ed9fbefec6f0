// Package messaging выбирает провайдеров доставки и отправляет через них уведомления.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"market-alerts/internal/domain"
	"market-alerts/internal/infra/metrics"
)

// DefaultAttemptTimeout ограничивает одну попытку отправки, если таймаут не задан.
const DefaultAttemptTimeout = 20 * time.Second

// Manager хранит реестр провайдеров и реализует отправку с fallback.
type Manager struct {
	logger         zerolog.Logger
	attemptTimeout time.Duration

	mu        sync.RWMutex
	providers []domain.MessagingProvider
	byName    map[string]int
}

// NewManager создаёт менеджер с таймаутом на каждую попытку отправки.
func NewManager(logger zerolog.Logger, attemptTimeout time.Duration) *Manager {
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	return &Manager{
		logger:         logger.With().Str("component", "messaging").Logger(),
		attemptTimeout: attemptTimeout,
		byName:         make(map[string]int),
	}
}

// RegisterProvider добавляет провайдера. Повторная регистрация имени заменяет
// провайдера, сохраняя его место в порядке регистрации.
func (m *Manager) RegisterProvider(p domain.MessagingProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.byName[p.Name()]; ok {
		m.providers[idx] = p
		return
	}
	m.byName[p.Name()] = len(m.providers)
	m.providers = append(m.providers, p)
	m.logger.Info().Str("provider", p.Name()).Msg("messaging: provider registered")
}

// Send отправляет сообщение получателю и возвращает по одному результату на
// каждого провайдера, через которого была попытка.
//
// Сначала перебираются предпочтительные провайдеры. Если ни одна попытка не
// была успешной (или попыток не было), перебираются остальные провайдеры в
// порядке регистрации. При выключенном FallbackEnabled отправка
// останавливается на первом успехе.
func (m *Manager) Send(ctx context.Context, recipient domain.MessageRecipient, content domain.MessageContent, opts domain.SendOptions) []domain.MessageResult {
	providers := m.snapshot()
	results := make([]domain.MessageResult, 0, len(providers))
	tried := make(map[string]struct{}, len(providers))

	for _, name := range opts.PreferredProviders {
		p := m.lookup(name)
		if p == nil {
			m.logger.Warn().Str("provider", name).Str("recipient", recipient.ID).Msg("messaging: preferred provider not registered")
			continue
		}
		if _, ok := tried[name]; ok || !p.CanSendTo(recipient) {
			continue
		}
		tried[name] = struct{}{}
		res := m.attempt(ctx, p, recipient, content)
		results = append(results, res)
		if res.Success && !opts.FallbackEnabled {
			return results
		}
	}

	if anySucceeded(results) {
		return results
	}

	for _, p := range providers {
		if _, ok := tried[p.Name()]; ok {
			continue
		}
		if !p.CanSendTo(recipient) {
			continue
		}
		tried[p.Name()] = struct{}{}
		res := m.attempt(ctx, p, recipient, content)
		results = append(results, res)
		if res.Success && !opts.FallbackEnabled {
			break
		}
	}

	if len(results) == 0 {
		m.logger.Warn().Str("recipient", recipient.ID).Msg("messaging: no provider can reach recipient")
	} else if !anySucceeded(results) {
		m.logger.Error().Str("recipient", recipient.ID).Int("attempts", len(results)).Msg("messaging: all providers failed")
	}
	return results
}

// SendBulk последовательно отправляет сообщение каждому получателю.
// Результаты сгруппированы по ID получателя.
func (m *Manager) SendBulk(ctx context.Context, recipients []domain.MessageRecipient, content domain.MessageContent, opts domain.SendOptions) map[string][]domain.MessageResult {
	out := make(map[string][]domain.MessageResult, len(recipients))
	for _, r := range recipients {
		out[r.ID] = append(out[r.ID], m.Send(ctx, r, content, opts)...)
	}
	return out
}

// SendViaProvider отправляет через конкретного провайдера, минуя выбор.
// Неизвестное имя и недостижимый получатель возвращаются как неуспешный результат.
func (m *Manager) SendViaProvider(ctx context.Context, name string, recipient domain.MessageRecipient, content domain.MessageContent) domain.MessageResult {
	p := m.lookup(name)
	if p == nil {
		return domain.FailedResult(name, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name))
	}
	if !p.CanSendTo(recipient) {
		return domain.FailedResult(name, fmt.Errorf("%w: %s", domain.ErrRecipientUnreachable, name))
	}
	return m.attempt(ctx, p, recipient, content)
}

// AvailableProviders возвращает провайдеров, способных доставить сообщение получателю.
func (m *Manager) AvailableProviders(recipient domain.MessageRecipient) []domain.MessagingProvider {
	var out []domain.MessagingProvider
	for _, p := range m.snapshot() {
		if p.CanSendTo(recipient) {
			out = append(out, p)
		}
	}
	return out
}

// Provider возвращает зарегистрированного провайдера по имени.
func (m *Manager) Provider(name string) (domain.MessagingProvider, bool) {
	p := m.lookup(name)
	return p, p != nil
}

func (m *Manager) attempt(ctx context.Context, p domain.MessagingProvider, recipient domain.MessageRecipient, content domain.MessageContent) domain.MessageResult {
	attemptCtx, cancel := context.WithTimeout(ctx, m.attemptTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan domain.MessageResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- domain.FailedResult(p.Name(), fmt.Errorf("provider panic: %v", r))
			}
		}()
		done <- p.Send(attemptCtx, recipient, content)
	}()

	var res domain.MessageResult
	select {
	case res = <-done:
	case <-attemptCtx.Done():
		err := attemptCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.ErrSendTimeout
		}
		res = domain.FailedResult(p.Name(), err)
	}
	if res.ProviderName == "" {
		res.ProviderName = p.Name()
	}
	metrics.ObserveProviderSend(p.Name(), start, res.Success)

	event := m.logger.Debug()
	if !res.Success {
		event = m.logger.Warn().Str("error", res.Error)
	}
	event.Str("provider", p.Name()).Str("recipient", recipient.ID).Dur("elapsed", time.Since(start)).Bool("success", res.Success).Msg("messaging: send attempt")
	return res
}

func (m *Manager) snapshot() []domain.MessagingProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.MessagingProvider, len(m.providers))
	copy(out, m.providers)
	return out
}

func (m *Manager) lookup(name string) domain.MessagingProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.byName[name]
	if !ok {
		return nil
	}
	return m.providers[idx]
}

func anySucceeded(results []domain.MessageResult) bool {
	for _, r := range results {
		if r.Success {
			return true
		}
	}
	return false
}
