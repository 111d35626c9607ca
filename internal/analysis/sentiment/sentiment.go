// Package sentiment scores news text with a weighted financial lexicon.
package sentiment

import (
	"math"
	"regexp"
	"strings"

	"stock-predictor/internal/analysis"
	"stock-predictor/internal/models"
)

// Classification thresholds and blend weights.
const (
	// positiveThreshold is the score above which text reads as positive.
	positiveThreshold = 0.2
	// negativeThreshold is the score below which text reads as negative.
	negativeThreshold = -0.2
	// headlineWeight and contentWeight blend the two scores of a dual-text
	// analysis. Headlines carry more signal per word than body text.
	headlineWeight = 0.6
	contentWeight  = 0.4
	// confidenceFloor anchors confidence for near-neutral scores.
	confidenceFloor = 0.3
)

// tokenPattern keeps apostrophes inside tokens so contractions like
// "isn't" survive tokenization and can match negation entries.
var tokenPattern = regexp.MustCompile(`\b[\w']+\b`)

// Analyzer scores text against an immutable lexicon. It holds no mutable
// state and is safe for concurrent use.
type Analyzer struct {
	lexicon Lexicon
}

// New creates an analyzer with the default lexicon.
func New() *Analyzer {
	return NewWithLexicon(DefaultLexicon())
}

// NewWithLexicon creates an analyzer with a custom lexicon.
func NewWithLexicon(lexicon Lexicon) *Analyzer {
	return &Analyzer{lexicon: lexicon}
}

// Analyze scores a single text. The score lives in [-1, +1] where the sign
// carries polarity; text without any lexicon word scores zero. It never
// fails.
func (a *Analyzer) Analyze(text string) analysis.Sentiment {
	score := a.scoreText(text)
	return analysis.Sentiment{
		Score:    score,
		Category: a.Classify(score),
	}
}

// AnalyzeHeadlineContent scores headline and content separately and blends
// them into a combined score. A blank side drops out of the blend so the
// other side carries the full weight.
func (a *Analyzer) AnalyzeHeadlineContent(headline, content string) analysis.DualSentiment {
	h := a.Analyze(headline)
	c := a.Analyze(content)

	hasHeadline := strings.TrimSpace(headline) != ""
	hasContent := strings.TrimSpace(content) != ""

	var combined float64
	switch {
	case hasHeadline && hasContent:
		combined = headlineWeight*h.Score + contentWeight*c.Score
	case hasHeadline:
		combined = h.Score
	case hasContent:
		combined = c.Score
	}
	combined = analysis.Clamp(combined, -1, 1)

	return analysis.DualSentiment{
		HeadlineScore:    h.Score,
		HeadlineCategory: h.Category,
		ContentScore:     c.Score,
		ContentCategory:  c.Category,
		Score:            combined,
		Category:         a.Classify(combined),
	}
}

// Classify maps a score onto its sentiment category.
func (a *Analyzer) Classify(score float64) models.SentimentCategory {
	switch {
	case score > positiveThreshold:
		return models.SentimentPositive
	case score < negativeThreshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// Confidence converts a score into a confidence in [0.3, 1.0]. Stronger
// polarity reads as higher confidence; a neutral score still gets the
// floor because "no signal" is itself a finding.
func (a *Analyzer) Confidence(score float64) float64 {
	return analysis.Clamp01(confidenceFloor + (1-confidenceFloor)*math.Abs(score))
}

// scoreText tokenizes the text and accumulates weighted polarity sums.
// A token directly preceded by a negation word contributes to the opposite
// bucket; one preceded by an intensifier contributes its scaled weight.
func (a *Analyzer) scoreText(text string) float64 {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)

	var positive, negative float64
	for i, token := range tokens {
		multiplier := 1.0
		negated := false
		if i > 0 {
			prev := tokens[i-1]
			if a.lexicon.Negations[prev] {
				negated = true
			} else if m, ok := a.lexicon.Intensifiers[prev]; ok {
				multiplier = m
			}
		}

		if weight, ok := a.lexicon.Positive[token]; ok {
			if negated {
				negative += weight * multiplier
			} else {
				positive += weight * multiplier
			}
		} else if weight, ok := a.lexicon.Negative[token]; ok {
			if negated {
				positive += weight * multiplier
			} else {
				negative += weight * multiplier
			}
		}
	}

	total := positive + negative
	if total == 0 {
		return 0
	}
	return analysis.Clamp((positive-negative)/total, -1, 1)
}
