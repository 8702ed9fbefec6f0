// Package messaging содержит провайдеров доставки уведомлений: email, SMS,
// WhatsApp и Telegram.
package messaging

import (
	"strings"

	"market-alerts/internal/adapters/htmltext"
	"market-alerts/internal/domain"
)

// Имена провайдеров, под которыми они регистрируются в менеджере.
const (
	ProviderEmail    = "Email"
	ProviderSMS      = "SMS"
	ProviderWhatsApp = "WhatsApp"
	ProviderTelegram = "Telegram"
)

// FormatSupporter сообщает, какие форматы понимает провайдер.
type FormatSupporter interface {
	SupportsFormat(format domain.MessageFormat) bool
}

// PrepareContent возвращает тело в формате, который провайдер способен отправить.
func PrepareContent(p FormatSupporter, content domain.MessageContent) string {
	if content.Format == domain.FormatText || p.SupportsFormat(content.Format) {
		return content.Body
	}
	return htmltext.ToPlainText(content.Body)
}

func checkSendable(p domain.MessagingProvider, recipient domain.MessageRecipient, content domain.MessageContent) error {
	if !p.CanSendTo(recipient) {
		return domain.ErrRecipientUnreachable
	}
	if strings.TrimSpace(content.Body) == "" {
		return domain.ErrEmptyBody
	}
	return nil
}

// NormalizeChatHandle оставляет в номере только цифры и '+', добавляя '+' в начало.
func NormalizeChatHandle(handle string) string {
	var b strings.Builder
	b.Grow(len(handle) + 1)
	for _, r := range handle {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if !strings.HasPrefix(normalized, "+") {
		normalized = "+" + normalized
	}
	return normalized
}
