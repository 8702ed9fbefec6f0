package messaging

import (
	"strings"
	"unicode/utf8"
)

// SplitMessage собирает строки текста в части не длиннее limit рун.
// Строка длиннее limit режется жёстко, остальные не разрываются.
// limit <= 0 отключает разбиение.
func SplitMessage(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(trimmed) <= limit {
		return []string{trimmed}
	}

	var (
		parts []string
		chunk []rune
	)
	flush := func() {
		if s := strings.Trim(string(chunk), "\n"); s != "" {
			parts = append(parts, s)
		}
		chunk = chunk[:0]
	}

	for _, line := range strings.Split(trimmed, "\n") {
		rest := []rune(line)
		for len(rest) > limit {
			flush()
			parts = append(parts, string(rest[:limit]))
			rest = rest[limit:]
		}

		sep := 0
		if len(chunk) > 0 {
			sep = 1
		}
		if len(chunk)+sep+len(rest) > limit {
			flush()
			sep = 0
		}
		if sep == 1 {
			chunk = append(chunk, '\n')
		}
		chunk = append(chunk, rest...)
	}
	flush()
	return parts
}
