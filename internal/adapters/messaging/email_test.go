package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"market-alerts/internal/domain"
)

type stubMailSender struct {
	from string
	to   []string
	msg  string
	err  error
}

func (s *stubMailSender) SendMail(_ context.Context, from string, to []string, msg []byte) error {
	s.from, s.to, s.msg = from, to, string(msg)
	return s.err
}

func TestEmailCanSendTo(t *testing.T) {
	p := NewEmailProvider(&stubMailSender{}, "alerts@example.com", "Alerts")
	if p.CanSendTo(domain.MessageRecipient{Phone: "+1555"}) {
		t.Fatal("без email отправка невозможна")
	}
	if !p.CanSendTo(domain.MessageRecipient{Email: "user@example.com"}) {
		t.Fatal("с email отправка возможна")
	}
	if !p.SupportsFormat(domain.FormatHTML) || !p.SupportsFormat(domain.FormatText) {
		t.Fatal("email поддерживает оба формата")
	}
}

func TestEmailSendHTMLWithTextAlternative(t *testing.T) {
	sender := &stubMailSender{}
	p := NewEmailProvider(sender, "alerts@example.com", "Alerts")
	res := p.Send(context.Background(),
		domain.MessageRecipient{ID: "1", Name: "Ann", Email: "ann@example.com"},
		domain.MessageContent{Format: domain.FormatHTML, Subject: "AAPL alert", Body: "<p>AAPL is up</p>"},
	)
	if !res.Success {
		t.Fatalf("ожидали успех, получили %+v", res)
	}
	if res.ProviderName != ProviderEmail {
		t.Fatalf("неожиданное имя провайдера %q", res.ProviderName)
	}
	if !strings.HasPrefix(res.MessageID, "<") || !strings.HasSuffix(res.MessageID, "@example.com>") {
		t.Fatalf("неожиданный Message-ID %q", res.MessageID)
	}
	if sender.from != "alerts@example.com" || len(sender.to) != 1 || sender.to[0] != "ann@example.com" {
		t.Fatalf("неожиданный конверт: %s -> %v", sender.from, sender.to)
	}
	for _, want := range []string{
		"Subject: AAPL alert",
		"multipart/alternative",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Type: text/html; charset=UTF-8",
		"<p>AAPL is up</p>",
		"Message-ID: " + res.MessageID,
	} {
		if !strings.Contains(sender.msg, want) {
			t.Fatalf("ожидали %q в письме:\n%s", want, sender.msg)
		}
	}
}

func TestEmailSendPlainText(t *testing.T) {
	sender := &stubMailSender{}
	p := NewEmailProvider(sender, "alerts@example.com", "")
	res := p.Send(context.Background(),
		domain.MessageRecipient{Email: "ann@example.com"},
		domain.MessageContent{Format: domain.FormatText, Subject: "Hi", Body: "plain body"},
	)
	if !res.Success {
		t.Fatalf("ожидали успех, получили %+v", res)
	}
	if strings.Contains(sender.msg, "multipart") || !strings.Contains(sender.msg, "plain body") {
		t.Fatalf("ожидали одночастное текстовое письмо:\n%s", sender.msg)
	}
}

func TestEmailSendSurfacesTransportError(t *testing.T) {
	p := NewEmailProvider(&stubMailSender{err: errors.New("535 authentication failed")}, "alerts@example.com", "")
	res := p.Send(context.Background(),
		domain.MessageRecipient{Email: "ann@example.com"},
		domain.MessageContent{Format: domain.FormatText, Body: "x"},
	)
	if res.Success || res.Error != "535 authentication failed" || res.ProviderName != ProviderEmail {
		t.Fatalf("ожидали ошибку транспорта, получили %+v", res)
	}
}

func TestEmailSendUnreachableRecipient(t *testing.T) {
	sender := &stubMailSender{}
	p := NewEmailProvider(sender, "alerts@example.com", "")
	res := p.Send(context.Background(), domain.MessageRecipient{Phone: "+1"}, domain.MessageContent{Format: domain.FormatText, Body: "x"})
	if res.Success || res.Error != domain.ErrRecipientUnreachable.Error() {
		t.Fatalf("ожидали недоступного получателя, получили %+v", res)
	}
	if sender.msg != "" {
		t.Fatal("транспорт не должен вызываться")
	}
}
