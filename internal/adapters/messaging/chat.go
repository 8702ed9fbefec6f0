package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"market-alerts/internal/domain"
	"market-alerts/internal/infra/metrics"
)

const whatsappStateOpen = "open"

// ChatConfig описывает подключение к WhatsApp-шлюзу (Evolution API).
type ChatConfig struct {
	BaseURL  string
	Instance string
	APIKey   string
	Timeout  time.Duration
}

// ChatProvider отправляет сообщения в WhatsApp через HTTP API бота.
type ChatProvider struct {
	cfg    ChatConfig
	client *http.Client
}

var (
	_ domain.MessagingProvider = (*ChatProvider)(nil)
	_ domain.ReadinessProbe    = (*ChatProvider)(nil)
)

// NewChatProvider создаёт WhatsApp-провайдера.
func NewChatProvider(cfg ChatConfig) *ChatProvider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &ChatProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Name реализует domain.MessagingProvider.
func (p *ChatProvider) Name() string { return ProviderWhatsApp }

// SupportsFormat: WhatsApp принимает только текст с *выделением*.
func (p *ChatProvider) SupportsFormat(format domain.MessageFormat) bool {
	return format == domain.FormatText
}

// CanSendTo требует номер чата, в котором есть хотя бы одна цифра.
func (p *ChatProvider) CanSendTo(recipient domain.MessageRecipient) bool {
	return strings.ContainsAny(recipient.ChatHandle, "0123456789")
}

// Send отправляет текстовое сообщение. Тема выделяется звёздочками.
func (p *ChatProvider) Send(ctx context.Context, recipient domain.MessageRecipient, content domain.MessageContent) domain.MessageResult {
	if err := checkSendable(p, recipient, content); err != nil {
		return domain.FailedResult(p.Name(), err)
	}
	text := PrepareContent(p, content)
	if subject := strings.TrimSpace(content.Subject); subject != "" {
		text = "*" + subject + "*\n\n" + text
	}
	id, err := p.sendText(ctx, NormalizeChatHandle(recipient.ChatHandle), text)
	if err != nil {
		return domain.FailedResult(p.Name(), err)
	}
	return domain.MessageResult{Success: true, MessageID: id, ProviderName: p.Name()}
}

// IsReady проверяет, подключён ли инстанс бота. Вызов необязателен перед Send.
func (p *ChatProvider) IsReady(ctx context.Context) (bool, error) {
	var state struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
	}
	if err := p.do(ctx, http.MethodGet, "/instance/connectionState/", "connection_state", nil, &state); err != nil {
		return false, err
	}
	return state.Instance.State == whatsappStateOpen, nil
}

func (p *ChatProvider) sendText(ctx context.Context, number, text string) (string, error) {
	reqBody := map[string]string{"number": number, "text": text}
	var resp struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	if err := p.do(ctx, http.MethodPost, "/message/sendText/", "send_text", reqBody, &resp); err != nil {
		return "", err
	}
	return resp.Key.ID, nil
}

func (p *ChatProvider) do(ctx context.Context, method, path, operation string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("whatsapp: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	endpoint := p.cfg.BaseURL + path + url.PathEscape(p.cfg.Instance)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("whatsapp: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("apikey", p.cfg.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("whatsapp", operation, p.cfg.Instance, start, err)
		return fmt.Errorf("whatsapp: %s: %w", operation, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err = fmt.Errorf("whatsapp: %s failed: status %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(data)))
		metrics.ObserveNetworkRequest("whatsapp", operation, p.cfg.Instance, start, err)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.ObserveNetworkRequest("whatsapp", operation, p.cfg.Instance, start, err)
		return fmt.Errorf("whatsapp: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("whatsapp", operation, p.cfg.Instance, start, nil)
	return nil
}
