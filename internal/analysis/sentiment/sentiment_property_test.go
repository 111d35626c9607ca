package sentiment

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stock-predictor/internal/models"
)

// singleLexiconWords returns every single-token entry of both polarity
// lists, sorted so generators are stable across runs.
func singleLexiconWords(lexicon Lexicon) []string {
	var words []string
	for w := range lexicon.Positive {
		if !strings.Contains(w, " ") {
			words = append(words, w)
		}
	}
	for w := range lexicon.Negative {
		if !strings.Contains(w, " ") {
			words = append(words, w)
		}
	}
	sort.Strings(words)
	return words
}

// genNewsText produces short news-like text from sentiment-bearing and
// filler words so the blend properties see non-trivial scores.
func genNewsText() gopter.Gen {
	words := []string{
		"profit", "loss", "strong", "weak", "growth", "decline", "rally",
		"crash", "risk", "gain", "very", "slightly", "not", "no", "the",
		"company", "market", "shares", "quarter", "results",
	}
	return gen.SliceOfN(8, gen.IntRange(0, len(words)-1)).Map(func(idxs []int) string {
		parts := make([]string, len(idxs))
		for i, idx := range idxs {
			parts[i] = words[idx]
		}
		return strings.Join(parts, " ")
	})
}

func TestSentimentProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)
	a := New()
	lexWords := singleLexiconWords(a.lexicon)

	// Property: scores stay within [-1, +1] even for unicode noise.
	properties.Property("score stays within [-1,+1] for arbitrary text", prop.ForAll(
		func(text string) bool {
			result := a.Analyze(text)
			return result.Score >= -1 && result.Score <= 1
		},
		gen.AnyString(),
	))

	// Property: the returned category always agrees with the thresholds
	// applied to the returned score.
	properties.Property("category agrees with score thresholds", prop.ForAll(
		func(text string) bool {
			result := a.Analyze(text)
			switch {
			case result.Score > positiveThreshold:
				return result.Category == models.SentimentPositive
			case result.Score < negativeThreshold:
				return result.Category == models.SentimentNegative
			default:
				return result.Category == models.SentimentNeutral
			}
		},
		genNewsText(),
	))

	// Property: negating a lone lexicon word exactly mirrors its score.
	properties.Property("negation flips the score of a lexicon word", prop.ForAll(
		func(idx int) bool {
			word := lexWords[idx]
			plain := a.Analyze(word)
			negated := a.Analyze("not " + word)
			return negated.Score == -plain.Score
		},
		gen.IntRange(0, len(lexWords)-1),
	))

	// Property: confidence lives in [0.3, 1.0] and polarity direction
	// does not matter, only magnitude.
	properties.Property("confidence is bounded and symmetric", prop.ForAll(
		func(score float64) bool {
			c := a.Confidence(score)
			return c >= confidenceFloor && c <= 1 && c == a.Confidence(-score)
		},
		gen.Float64Range(-1, 1),
	))

	// Property: the blended score is a convex combination, so it never
	// escapes the interval spanned by the two individual scores.
	properties.Property("blend stays between headline and content scores", prop.ForAll(
		func(headline, content string) bool {
			h := a.Analyze(headline).Score
			c := a.Analyze(content).Score
			combined := a.AnalyzeHeadlineContent(headline, content).Score

			lo, hi := h, c
			if lo > hi {
				lo, hi = hi, lo
			}
			return combined >= lo-1e-9 && combined <= hi+1e-9
		},
		genNewsText(),
		genNewsText(),
	))

	properties.TestingRun(t)
}
