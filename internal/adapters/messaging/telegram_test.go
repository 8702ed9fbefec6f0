package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market-alerts/internal/domain"
)

type stubBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (b *stubBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.err != nil {
		return tgbotapi.Message{}, b.err
	}
	msg := c.(tgbotapi.MessageConfig)
	b.sent = append(b.sent, msg)
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

func TestTelegramSendEscapesAndSplits(t *testing.T) {
	bot := &stubBot{}
	p := NewTelegramProvider(bot)
	body := strings.Repeat("line & more\n", 600)
	res := p.Send(context.Background(),
		domain.MessageRecipient{TelegramChatID: 42},
		domain.MessageContent{Format: domain.FormatText, Subject: "AAPL <alert>", Body: body},
	)
	if !res.Success || res.ProviderName != ProviderTelegram {
		t.Fatalf("неожиданный результат %+v", res)
	}
	if len(bot.sent) < 2 {
		t.Fatalf("ожидали разбиение на части, получили %d", len(bot.sent))
	}
	if res.MessageID != "2" && res.MessageID != "3" {
		t.Fatalf("ожидали id последнего сообщения, получили %q", res.MessageID)
	}
	first := bot.sent[0]
	if first.ChatID != 42 || first.ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("неожиданные параметры сообщения %+v", first)
	}
	if !strings.HasPrefix(first.Text, "<b>AAPL &lt;alert&gt;</b>\n\nline &amp; more") {
		t.Fatalf("неожиданный текст %q", first.Text[:60])
	}
}

func TestTelegramSendError(t *testing.T) {
	p := NewTelegramProvider(&stubBot{err: errors.New("Forbidden: bot was blocked by the user")})
	res := p.Send(context.Background(), domain.MessageRecipient{TelegramChatID: 1}, domain.MessageContent{Format: domain.FormatText, Body: "x"})
	if res.Success || !strings.Contains(res.Error, "blocked") {
		t.Fatalf("ожидали ошибку, получили %+v", res)
	}
}

func TestTelegramCanSendTo(t *testing.T) {
	p := NewTelegramProvider(&stubBot{})
	if p.CanSendTo(domain.MessageRecipient{Email: "a@b.c"}) || !p.CanSendTo(domain.MessageRecipient{TelegramChatID: 5}) {
		t.Fatal("Telegram требует chat id")
	}
}
