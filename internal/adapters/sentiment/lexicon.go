package sentiment

import (
	"math"
	"regexp"
	"strings"

	"market-alerts/internal/domain"
)

const (
	positiveThreshold = domain.PositiveSentimentThreshold
	negativeThreshold = domain.NegativeSentimentThreshold
	confidenceWords   = 5.0

	titleWeight       = 0.6
	descriptionWeight = 0.4

	// стемы короче этой длины сравниваются только целиком
	minStemPrefix = 4
)

var tokenSplitter = regexp.MustCompile(`\W+`)

var positiveStems = []string{
	"gain", "rise", "rising", "rose", "surg", "soar", "rally", "rallies", "jump",
	"climb", "boom", "bull", "growth", "grow", "profit", "beat", "record", "strong",
	"high", "upgrade", "outperform", "optimis", "recover", "success", "good", "great",
	"positive", "boost", "advanc", "win", "up",
}

var negativeStems = []string{
	"loss", "lose", "losing", "lost", "fall", "fell", "drop", "declin", "crash",
	"plung", "slump", "tumbl", "bear", "weak", "low", "lower", "downgrade", "down", "miss",
	"fear", "risk", "recession", "selloff", "concern", "worr", "crisis", "bad",
	"poor", "negative", "cut", "layoff", "bankrupt", "fraud", "lawsuit", "volatil",
}

// модификаторы умножают вклад следующего слова с тональностью
var modifiers = map[string]float64{
	"very":          1.5,
	"extremely":     2.0,
	"highly":        1.5,
	"significantly": 1.5,
	"sharply":       1.5,
	"strongly":      1.5,
	"slightly":      0.5,
	"somewhat":      0.7,
	"barely":        0.3,
	"not":           -1.0,
	"never":         -1.5,
	"no":            -0.8,
}

// Lexicon реализует domain.SentimentScorer лексической эвристикой.
type Lexicon struct {
	positive []string
	negative []string
}

var _ domain.SentimentScorer = (*Lexicon)(nil)

// NewLexicon создаёт оценщик тональности со встроенными словарями.
func NewLexicon() *Lexicon {
	return &Lexicon{positive: positiveStems, negative: negativeStems}
}

// Score оценивает тональность текста.
func (l *Lexicon) Score(text string) domain.SentimentResult {
	var positive, negative float64
	modifier := 1.0
	for _, token := range tokenize(text) {
		if factor, ok := modifiers[token]; ok {
			modifier = factor
			continue
		}
		switch {
		case matchesAny(token, l.positive):
			positive += 1.0 * modifier
		case matchesAny(token, l.negative):
			// отрицание усиливает негатив, а не меняет знак
			negative += 1.0 * math.Abs(modifier)
		}
		modifier = 1.0
	}

	// отрицательный модификатор может увести positive ниже нуля, поэтому знаменатель по модулю
	total := math.Abs(positive) + negative
	if total == 0 {
		return domain.SentimentResult{Score: 0, Label: domain.SentimentNeutral, Confidence: 0}
	}
	score := clamp((positive-negative)/total, -1, 1)
	return domain.SentimentResult{
		Score:      score,
		Label:      LabelFor(score),
		Confidence: math.Min(1, total/confidenceWords),
	}
}

// ScoreNews смешивает оценки заголовка и описания в пропорции 0.6/0.4.
func (l *Lexicon) ScoreNews(title, description string) domain.SentimentResult {
	titleResult := l.Score(title)
	if strings.TrimSpace(description) == "" {
		return titleResult
	}
	descResult := l.Score(description)
	score := titleWeight*titleResult.Score + descriptionWeight*descResult.Score
	confidence := titleWeight*titleResult.Confidence + descriptionWeight*descResult.Confidence
	return domain.SentimentResult{Score: score, Label: LabelFor(score), Confidence: confidence}
}

// LabelFor переводит числовую оценку в метку.
func LabelFor(score float64) domain.SentimentLabel {
	return domain.LabelForScore(score)
}

func tokenize(text string) []string {
	parts := tokenSplitter.Split(strings.ToLower(text), -1)
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

func matchesAny(token string, stems []string) bool {
	for _, stem := range stems {
		if token == stem {
			return true
		}
		if len(stem) >= minStemPrefix && strings.HasPrefix(token, stem) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
