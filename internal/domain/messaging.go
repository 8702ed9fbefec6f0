package domain

import "context"

// MessageFormat — формат тела сообщения.
type MessageFormat string

const (
	// FormatHTML — тело размечено HTML.
	FormatHTML MessageFormat = "html"
	// FormatText — простой текст.
	FormatText MessageFormat = "text"
)

// MessageContent — содержимое уведомления.
type MessageContent struct {
	Format   MessageFormat
	Subject  string
	Body     string
	Metadata map[string]string
}

// MessageRecipient — получатель уведомления. Пустые поля означают отсутствие контакта.
type MessageRecipient struct {
	ID             string
	Name           string
	Email          string
	Phone          string
	ChatHandle     string
	TelegramChatID int64
}

// MessageResult — результат одной попытки отправки через провайдера.
type MessageResult struct {
	Success      bool
	MessageID    string
	Error        string
	ProviderName string
}

// FailedResult создаёт неуспешный результат для провайдера.
func FailedResult(provider string, err error) MessageResult {
	return MessageResult{Success: false, Error: err.Error(), ProviderName: provider}
}

// MessagingProvider — канал доставки уведомлений.
// Send никогда не возвращает ошибку транспорта: она попадает в MessageResult.Error.
type MessagingProvider interface {
	Name() string
	Send(ctx context.Context, recipient MessageRecipient, content MessageContent) MessageResult
	SupportsFormat(format MessageFormat) bool
	CanSendTo(recipient MessageRecipient) bool
}

// ReadinessProbe сообщает, готов ли внешний канал к отправке.
type ReadinessProbe interface {
	IsReady(ctx context.Context) (bool, error)
}

// SendOptions управляет выбором провайдеров.
// Нулевое значение отключает fallback, используйте DefaultSendOptions.
type SendOptions struct {
	PreferredProviders []string
	FallbackEnabled    bool
}

// DefaultSendOptions возвращает настройки по умолчанию: без предпочтений, fallback включён.
func DefaultSendOptions() SendOptions {
	return SendOptions{FallbackEnabled: true}
}
