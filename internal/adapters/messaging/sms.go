package messaging

import (
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

const defaultTwilioBaseURL = "https://api.twilio.com"

// SMSConfig описывает учётные данные SMS-шлюза.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	Timeout    time.Duration
}

// SMSProvider отправляет SMS через REST API Twilio.
type SMSProvider struct {
	cfg    SMSConfig
	client *http.Client
}

var _ domain.MessagingProvider = (*SMSProvider)(nil)

// NewSMSProvider создаёт SMS-провайдера.
func NewSMSProvider(cfg SMSConfig) *SMSProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwilioBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMSProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Name реализует domain.MessagingProvider.
func (p *SMSProvider) Name() string { return ProviderSMS }

// SupportsFormat: SMS принимает только текст.
func (p *SMSProvider) SupportsFormat(format domain.MessageFormat) bool {
	return format == domain.FormatText
}

// CanSendTo требует номер телефона у получателя.
func (p *SMSProvider) CanSendTo(recipient domain.MessageRecipient) bool {
	return strings.TrimSpace(recipient.Phone) != ""
}

// Send отправляет SMS. Тема, если есть, идёт первой строкой через пустую строку.
func (p *SMSProvider) Send(ctx context.Context, recipient domain.MessageRecipient, content domain.MessageContent) domain.MessageResult {
	if err := checkSendable(p, recipient, content); err != nil {
		return domain.FailedResult(p.Name(), err)
	}
	text := PrepareContent(p, content)
	if subject := strings.TrimSpace(content.Subject); subject != "" {
		text = subject + "\n\n" + text
	}
	sid, err := p.postMessage(ctx, strings.TrimSpace(recipient.Phone), text)
	if err != nil {
		return domain.FailedResult(p.Name(), err)
	}
	return domain.MessageResult{Success: true, MessageID: sid, ProviderName: p.Name()}
}

func (p *SMSProvider) postMessage(ctx context.Context, to, text string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", p.cfg.FromNumber)
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.cfg.BaseURL, url.PathEscape(p.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("twilio: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("twilio", "send_message", "messages", start, err)
		return "", fmt.Errorf("twilio: send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		metrics.ObserveNetworkRequest("twilio", "send_message", "messages", start, err)
		return "", fmt.Errorf("twilio: read response: %w", err)
	}
	var payload twilioResponse
	decodeErr := json.Unmarshal(body, &payload)
	if resp.StatusCode >= 300 {
		if decodeErr == nil && payload.Message != "" {
			err = fmt.Errorf("twilio: %s", payload.Message)
		} else {
			err = fmt.Errorf("twilio: unexpected status %d", resp.StatusCode)
		}
		metrics.ObserveNetworkRequest("twilio", "send_message", "messages", start, err)
		return "", err
	}
	if decodeErr != nil {
		metrics.ObserveNetworkRequest("twilio", "send_message", "messages", start, decodeErr)
		return "", fmt.Errorf("twilio: decode response: %w", decodeErr)
	}
	metrics.ObserveNetworkRequest("twilio", "send_message", "messages", start, nil)
	return payload.SID, nil
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
