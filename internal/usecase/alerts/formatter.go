package alerts

import (
	"fmt"
	"html"
	"strings"

	"github.com/dustin/go-humanize"

	"market-alerts/internal/domain"
)

// MetadataText — ключ метаданных с текстовой версией алерта.
const MetadataText = "text"

const newsActivityNote = "This alert was triggered by a significant price movement combined with elevated market news activity."

// MarketSentiment — усреднённая тональность новостей по рыночным темам.
type MarketSentiment struct {
	Score float64
	Label domain.SentimentLabel
	Count int
}

// BuildAlertContent формирует HTML-уведомление и его текстовую версию.
func BuildAlertContent(price domain.PriceEvent, sentiment MarketSentiment) domain.MessageContent {
	direction := Direction(price.ChangePercent)
	subject := fmt.Sprintf("Stock Alert: %s %s %.2f%%", price.Symbol, direction, absFloat(price.ChangePercent))

	return domain.MessageContent{
		Format:  domain.FormatHTML,
		Subject: subject,
		Body:    formatHTML(price, direction, sentiment),
		Metadata: map[string]string{
			MetadataText: formatText(price, direction, sentiment),
			"symbol":     price.Symbol,
		},
	}
}

// Direction возвращает направление движения цены по знаку изменения.
func Direction(changePercent float64) string {
	if changePercent < 0 {
		return "down"
	}
	return "up"
}

// FormatMarketCap выводит капитализацию в миллиардах долларов.
func FormatMarketCap(marketCap int64) string {
	return "$" + humanize.FormatFloat("#,###.##", float64(marketCap)/1e9) + "B"
}

func formatHTML(p domain.PriceEvent, direction string, s MarketSentiment) string {
	symbol := html.EscapeString(p.Symbol)
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Stock Alert: %s</h2>", symbol)
	fmt.Fprintf(&b, "<p>%s is <strong>%s</strong> %.2f%% at $%.2f.</p>", symbol, direction, absFloat(p.ChangePercent), p.Price)
	lines := []string{
		fmt.Sprintf("Price: $%.2f", p.Price),
		fmt.Sprintf("Change: %+.2f%%", p.ChangePercent),
		fmt.Sprintf("Volume: %s", humanize.Comma(p.Volume)),
		fmt.Sprintf("Market Cap: %s", FormatMarketCap(p.MarketCap)),
	}
	if s.Count > 0 {
		lines = append(lines, fmt.Sprintf("Market news sentiment: %s (%.2f)", s.Label, s.Score))
	}
	// одно поле на блок: при переводе в текст каждое окажется на своей строке
	for _, line := range lines {
		fmt.Fprintf(&b, "<div>%s</div>", line)
	}
	b.WriteString("<br>")
	fmt.Fprintf(&b, "<p>%s</p>", newsActivityNote)
	return b.String()
}

func formatText(p domain.PriceEvent, direction string, s MarketSentiment) string {
	lines := []string{
		fmt.Sprintf("Stock Alert: %s", p.Symbol),
		"",
		fmt.Sprintf("%s is %s %.2f%% at $%.2f.", p.Symbol, direction, absFloat(p.ChangePercent), p.Price),
		fmt.Sprintf("Price: $%.2f", p.Price),
		fmt.Sprintf("Change: %+.2f%%", p.ChangePercent),
		fmt.Sprintf("Volume: %s", humanize.Comma(p.Volume)),
		fmt.Sprintf("Market Cap: %s", FormatMarketCap(p.MarketCap)),
	}
	if s.Count > 0 {
		lines = append(lines, fmt.Sprintf("Market news sentiment: %s (%.2f)", s.Label, s.Score))
	}
	lines = append(lines, "", newsActivityNote)
	return strings.Join(lines, "\n")
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
