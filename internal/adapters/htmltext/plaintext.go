// Package htmltext понижает HTML-содержимое алертов до простого текста.
//
// Это не санитайзер для произвольного недоверенного ввода: функция рассчитана
// на разметку, которую формирует сам сервис, и лишь устойчиво к небольшим
// ошибкам в ней (незакрытые script/style, вложенные блоки).
package htmltext

import (
	"regexp"
	"strings"
)

var (
	scriptBlock = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	scriptOpen  = regexp.MustCompile(`(?is)<script\b[^>]*>`)
	styleBlock  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	styleOpen   = regexp.MustCompile(`(?is)<style\b[^>]*>`)

	embeddedBlocks = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<iframe\b[^>]*>.*?</iframe\s*>`),
		regexp.MustCompile(`(?is)<object\b[^>]*>.*?</object\s*>`),
		regexp.MustCompile(`(?is)<embed\b[^>]*>.*?</embed\s*>`),
		regexp.MustCompile(`(?is)<(?:iframe|object|embed|link)\b[^>]*>`),
	}

	lineBreak    = regexp.MustCompile(`(?i)<br\s*/?>`)
	paragraphEnd = regexp.MustCompile(`(?i)</p\s*>`)
	divEnd       = regexp.MustCompile(`(?i)</div\s*>`)
	headingEnd   = regexp.MustCompile(`(?i)</h[1-6]\s*>`)
	anyTag       = regexp.MustCompile(`(?s)<[^>]*>`)
)

// &amp; раскрывается последним, иначе "&amp;lt;" превратится в "<".
var entityReplacer = []struct{ entity, value string }{
	{"&nbsp;", " "},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&#39;", "'"},
	{"&amp;", "&"},
}

// ToPlainText превращает HTML в простой текст.
func ToPlainText(html string) string {
	text := stripRepeatedly(html, scriptBlock, scriptOpen)
	text = stripRepeatedly(text, styleBlock, styleOpen)
	for _, re := range embeddedBlocks {
		text = re.ReplaceAllString(text, "")
	}

	text = lineBreak.ReplaceAllString(text, "\n")
	text = paragraphEnd.ReplaceAllString(text, "\n\n")
	text = divEnd.ReplaceAllString(text, "\n")
	text = headingEnd.ReplaceAllString(text, "\n\n")

	text = anyTag.ReplaceAllString(text, "")

	for _, e := range entityReplacer {
		text = strings.ReplaceAll(text, e.entity, e.value)
	}

	text = strings.NewReplacer("<", "", ">", "").Replace(text)
	return strings.TrimSpace(text)
}

// stripRepeatedly удаляет блоки, а затем осиротевшие открывающие теги, пока они находятся.
func stripRepeatedly(text string, block, open *regexp.Regexp) string {
	for {
		if next := block.ReplaceAllString(text, ""); next != text {
			text = next
			continue
		}
		next := open.ReplaceAllString(text, "")
		if next == text {
			return text
		}
		text = next
	}
}
