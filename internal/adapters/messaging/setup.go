package messaging

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market-alerts/internal/domain"
	"market-alerts/internal/infra/config"
)

// Configured — провайдеры, для которых заданы учётные данные, в порядке регистрации.
type Configured struct {
	Providers []domain.MessagingProvider
	// Chat не nil, если настроен WhatsApp; используется для проверки готовности.
	Chat *ChatProvider
}

// FromConfig создаёт провайдеров по конфигурации. Порядок: Email, SMS, WhatsApp, Telegram.
func FromConfig(cfg config.AppConfig) (Configured, error) {
	var out Configured
	if cfg.EmailEnabled() {
		sender := NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
		out.Providers = append(out.Providers, NewEmailProvider(sender, cfg.SMTP.From, cfg.SMTP.FromName))
	}
	if cfg.SMSEnabled() {
		out.Providers = append(out.Providers, NewSMSProvider(SMSConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			FromNumber: cfg.Twilio.FromNumber,
			BaseURL:    cfg.Twilio.BaseURL,
			Timeout:    cfg.Alerts.SendTimeout,
		}))
	}
	if cfg.WhatsAppEnabled() {
		out.Chat = NewChatProvider(ChatConfig{
			BaseURL:  cfg.WhatsApp.BaseURL,
			Instance: cfg.WhatsApp.Instance,
			APIKey:   cfg.WhatsApp.APIKey,
			Timeout:  cfg.Alerts.SendTimeout,
		})
		out.Providers = append(out.Providers, out.Chat)
	}
	if cfg.TelegramEnabled() {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return Configured{}, fmt.Errorf("telegram: создание бота: %w", err)
		}
		out.Providers = append(out.Providers, NewTelegramProvider(bot))
	}
	return out, nil
}
