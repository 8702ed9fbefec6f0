package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"market-alerts/internal/domain"
)

func TestChatSendNormalizesNumberAndEmphasizesSubject(t *testing.T) {
	var got map[string]string
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"key":{"id":"WAMID.1"},"status":"PENDING"}`))
	}))
	defer srv.Close()

	p := NewChatProvider(ChatConfig{BaseURL: srv.URL + "/", Instance: "alerts", APIKey: "k"})
	res := p.Send(context.Background(),
		domain.MessageRecipient{ChatHandle: "(555) 123-4567"},
		domain.MessageContent{Format: domain.FormatHTML, Subject: "AAPL alert", Body: "<p>AAPL is up</p>"},
	)
	if !res.Success || res.MessageID != "WAMID.1" || res.ProviderName != ProviderWhatsApp {
		t.Fatalf("неожиданный результат %+v", res)
	}
	if gotPath != "/message/sendText/alerts" || gotKey != "k" {
		t.Fatalf("неожиданный запрос: path=%q apikey=%q", gotPath, gotKey)
	}
	if got["number"] != "+5551234567" {
		t.Fatalf("неожиданный номер %q", got["number"])
	}
	if got["text"] != "*AAPL alert*\n\nAAPL is up" {
		t.Fatalf("неожиданный текст %q", got["text"])
	}
}

func TestChatSendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"instance not connected"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewChatProvider(ChatConfig{BaseURL: srv.URL, Instance: "alerts"})
	res := p.Send(context.Background(), domain.MessageRecipient{ChatHandle: "+1555"}, domain.MessageContent{Format: domain.FormatText, Body: "x"})
	if res.Success || res.Error == "" {
		t.Fatalf("ожидали ошибку, получили %+v", res)
	}
}

func TestChatIsReady(t *testing.T) {
	state := "open"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instance/connectionState/alerts" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"instance":{"instanceName":"alerts","state":"` + state + `"}}`))
	}))
	defer srv.Close()

	p := NewChatProvider(ChatConfig{BaseURL: srv.URL, Instance: "alerts"})
	ready, err := p.IsReady(context.Background())
	if err != nil || !ready {
		t.Fatalf("ожидали готовность, получили %v, %v", ready, err)
	}
	state = "close"
	ready, err = p.IsReady(context.Background())
	if err != nil || ready {
		t.Fatalf("ожидали неготовность, получили %v, %v", ready, err)
	}
}

func TestChatCanSendTo(t *testing.T) {
	p := NewChatProvider(ChatConfig{})
	if p.CanSendTo(domain.MessageRecipient{Phone: "+1555"}) {
		t.Fatal("без chat handle отправка невозможна")
	}
	if p.CanSendTo(domain.MessageRecipient{ChatHandle: "none"}) {
		t.Fatal("handle без цифр непригоден")
	}
	if !p.CanSendTo(domain.MessageRecipient{ChatHandle: "+44 20 7946 0958"}) {
		t.Fatal("ожидали возможность отправки")
	}
}
