package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 5, 14, 30, 15, 0, time.UTC)
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "rfc3339", raw: "2024-03-05T14:30:15Z", want: want},
		{name: "rfc3339 with offset", raw: "2024-03-05T17:30:15+03:00", want: want},
		{name: "python isoformat", raw: "2024-03-05T14:30:15.123456", want: want.Add(123456 * time.Microsecond)},
		{name: "iso without fraction", raw: "2024-03-05T14:30:15", want: want},
		{name: "gnews published date", raw: "Tue, 05 Mar 2024 14:30:15 GMT", want: want},
		{name: "empty", raw: "  ", want: time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw)
			if err != nil {
				t.Fatalf("не ожидали ошибку: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseTimestamp(%q) = %v, want %v", tt.raw, got.Time, tt.want)
			}
		})
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	if _, err := ParseTimestamp("вчера"); err == nil {
		t.Fatal("ожидали ошибку для некорректной даты")
	}
}

func TestNewsEventDecode(t *testing.T) {
	raw := []byte(`{"title":"Stocks rally","description":"Nasdaq gains","url":"https://example.com/a","source":"Reuters","published_at":"Tue, 05 Mar 2024 14:30:15 GMT","topic":"nasdaq","fetched_at":"2024-03-05T14:31:00.000001"}`)
	var news NewsEvent
	if err := json.Unmarshal(raw, &news); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if news.Topic != "nasdaq" || news.URL != "https://example.com/a" {
		t.Fatalf("неожиданные поля: %+v", news)
	}
	if news.PublishedAt.IsZero() || news.FetchedAt.IsZero() {
		t.Fatal("ожидали разобранные даты")
	}
	if err := news.Validate(); err != nil {
		t.Fatalf("не ожидали ошибку валидации: %v", err)
	}
}

func TestPriceEventDecode(t *testing.T) {
	raw := []byte(`{"symbol":"AAPL","price":195.5,"changePercent":-6.25,"volume":123456789,"marketCap":3000000000000,"timestamp":"2024-03-05T14:30:15Z"}`)
	var price PriceEvent
	if err := json.Unmarshal(raw, &price); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if price.Symbol != "AAPL" || price.ChangePercent != -6.25 || price.MarketCap != 3000000000000 {
		t.Fatalf("неожиданные поля: %+v", price)
	}
}

func TestValidateRejectsIncompleteEvents(t *testing.T) {
	if err := (NewsEvent{Topic: "nasdaq"}).Validate(); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("ожидали ErrMalformedEvent для новости без url, получили %v", err)
	}
	if err := (NewsEvent{URL: "https://example.com"}).Validate(); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("ожидали ErrMalformedEvent для новости без темы, получили %v", err)
	}
	if err := (PriceEvent{}).Validate(); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("ожидали ErrMalformedEvent для котировки без тикера, получили %v", err)
	}
}

func TestWatchlistEntryRecipient(t *testing.T) {
	entry := WatchlistEntry{UserID: 7, UserEmail: "a@example.com", UserPhone: "+15550001111", StockSymbol: "AAPL"}
	r := entry.Recipient()
	if r.ID != "7" || r.Email != "a@example.com" || r.Phone != "+15550001111" || r.ChatHandle != "" {
		t.Fatalf("неожиданный получатель: %+v", r)
	}
}
