package messaging

import (
	"testing"

	"market-alerts/internal/domain"
)

type formatStub struct{ html bool }

func (f formatStub) SupportsFormat(format domain.MessageFormat) bool {
	return format == domain.FormatText || (f.html && format == domain.FormatHTML)
}

func TestPrepareContent(t *testing.T) {
	htmlContent := domain.MessageContent{Format: domain.FormatHTML, Body: "<p>Hello &amp; bye</p>"}
	textContent := domain.MessageContent{Format: domain.FormatText, Body: "<p>literal</p>"}

	if got := PrepareContent(formatStub{html: true}, htmlContent); got != htmlContent.Body {
		t.Fatalf("HTML-провайдер должен получить тело без изменений, получили %q", got)
	}
	if got := PrepareContent(formatStub{}, htmlContent); got != "Hello & bye" {
		t.Fatalf("ожидали понижение до текста, получили %q", got)
	}
	if got := PrepareContent(formatStub{}, textContent); got != textContent.Body {
		t.Fatalf("текст не должен меняться, получили %q", got)
	}
}

func TestNormalizeChatHandle(t *testing.T) {
	cases := map[string]string{
		"(555) 123-4567":   "+5551234567",
		"+44 20 7946 0958": "+442079460958",
		"+1-555-000-1111":  "+15550001111",
		"wa:79161234567":   "+79161234567",
	}
	for input, expected := range cases {
		if got := NormalizeChatHandle(input); got != expected {
			t.Fatalf("NormalizeChatHandle(%q) = %q, want %q", input, got, expected)
		}
	}
}
