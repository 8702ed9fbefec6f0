package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-alerts/internal/adapters/messaging"
	"market-alerts/internal/domain"
	applog "market-alerts/internal/infra/log"
)

type stubProvider struct {
	name string
	fail bool
}

func (p stubProvider) Name() string                            { return p.name }
func (p stubProvider) SupportsFormat(domain.MessageFormat) bool { return true }
func (p stubProvider) CanSendTo(r domain.MessageRecipient) bool { return r.Phone != "" }

func (p stubProvider) Send(_ context.Context, r domain.MessageRecipient, _ domain.MessageContent) domain.MessageResult {
	if p.fail {
		return domain.FailedResult(p.name, errors.New("gateway rejected"))
	}
	return domain.MessageResult{Success: true, MessageID: "id-1", ProviderName: p.name}
}

func TestRunSendsThroughNamedProvider(t *testing.T) {
	var out bytes.Buffer
	configured := messaging.Configured{Providers: []domain.MessagingProvider{stubProvider{name: "SMS"}}}
	err := run(context.Background(), zerolog.Nop(), configured, time.Second, options{provider: "SMS", phone: "+1555", body: "hi"}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.String() != "SMS: sent, id=id-1\n" {
		t.Fatalf("неожиданный вывод %q", out.String())
	}
}

func TestRunReportsFailures(t *testing.T) {
	configured := messaging.Configured{Providers: []domain.MessagingProvider{stubProvider{name: "SMS", fail: true}}}
	tests := []struct {
		name string
		opts options
		want error
	}{
		{name: "no body", opts: options{phone: "+1555"}, want: errNoBody},
		{name: "unreachable", opts: options{email: "a@b.c", body: "hi"}, want: errNoProvider},
		{name: "all failed", opts: options{phone: "+1555", body: "hi"}, want: errAllSendFailed},
		{name: "probe without chat", opts: options{probe: true}, want: errNoChat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), zerolog.Nop(), configured, time.Second, tt.opts, &bytes.Buffer{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("ожидали %v, получили %v", tt.want, err)
			}
		})
	}
}

func TestRunLogsThroughServiceLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := applog.ForService(zerolog.New(&logs), "notify")
	configured := messaging.Configured{Providers: []domain.MessagingProvider{stubProvider{name: "SMS", fail: true}}}

	_ = run(context.Background(), logger, configured, time.Second, options{phone: "+1555", body: "hi"}, &bytes.Buffer{})
	if !strings.Contains(logs.String(), `"service":"notify"`) {
		t.Fatalf("логи должны идти через логгер сервиса: %s", logs.String())
	}
}

func TestRunProbe(t *testing.T) {
	state := "open"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"instance":{"state":"` + state + `"}}`))
	}))
	defer srv.Close()
	chat := messaging.NewChatProvider(messaging.ChatConfig{BaseURL: srv.URL, Instance: "alerts"})
	configured := messaging.Configured{Providers: []domain.MessagingProvider{chat}, Chat: chat}

	var out bytes.Buffer
	if err := run(context.Background(), zerolog.Nop(), configured, time.Second, options{probe: true, instance: "alerts"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), `"alerts" ready: true`) {
		t.Fatalf("неожиданный вывод %q", out.String())
	}

	state = "close"
	if err := run(context.Background(), zerolog.Nop(), configured, time.Second, options{probe: true}, &bytes.Buffer{}); !errors.Is(err, errNotReady) {
		t.Fatalf("ожидали errNotReady, получили %v", err)
	}
}
