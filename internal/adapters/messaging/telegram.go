package messaging

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market-alerts/internal/domain"
	"market-alerts/internal/infra/metrics"
)

const telegramMessageLimit = 4096

// TelegramSender — часть tgbotapi.BotAPI, которая нужна провайдеру.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramProvider отправляет уведомления через Telegram-бота.
type TelegramProvider struct {
	bot TelegramSender
}

var _ domain.MessagingProvider = (*TelegramProvider)(nil)

// NewTelegramProvider создаёт провайдера поверх бота.
func NewTelegramProvider(bot TelegramSender) *TelegramProvider {
	return &TelegramProvider{bot: bot}
}

// Name реализует domain.MessagingProvider.
func (p *TelegramProvider) Name() string { return ProviderTelegram }

// SupportsFormat: HTML-разметка Telegram слишком ограничена, поэтому только текст.
func (p *TelegramProvider) SupportsFormat(format domain.MessageFormat) bool {
	return format == domain.FormatText
}

// CanSendTo требует идентификатор чата Telegram.
func (p *TelegramProvider) CanSendTo(recipient domain.MessageRecipient) bool {
	return recipient.TelegramChatID != 0
}

// Send отправляет сообщение, разбивая его на части по лимиту Telegram.
func (p *TelegramProvider) Send(ctx context.Context, recipient domain.MessageRecipient, content domain.MessageContent) domain.MessageResult {
	if err := checkSendable(p, recipient, content); err != nil {
		return domain.FailedResult(p.Name(), err)
	}
	text := html.EscapeString(PrepareContent(p, content))
	if subject := strings.TrimSpace(content.Subject); subject != "" {
		text = "<b>" + html.EscapeString(subject) + "</b>\n\n" + text
	}

	target := strconv.FormatInt(recipient.TelegramChatID, 10)
	var last tgbotapi.Message
	for _, part := range SplitMessage(text, telegramMessageLimit) {
		if err := ctx.Err(); err != nil {
			return domain.FailedResult(p.Name(), err)
		}
		msg := tgbotapi.NewMessage(recipient.TelegramChatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		start := time.Now()
		sent, err := p.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", target, start, err)
		if err != nil {
			return domain.FailedResult(p.Name(), fmt.Errorf("telegram: %w", err))
		}
		last = sent
	}
	return domain.MessageResult{Success: true, MessageID: strconv.Itoa(last.MessageID), ProviderName: p.Name()}
}
