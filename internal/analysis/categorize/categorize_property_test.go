package categorize

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stock-predictor/internal/models"
)

// genEventText produces headline-like text mixing category keywords with
// filler words.
func genEventText() gopter.Gen {
	return gen.SliceOfN(10, gen.OneConstOf(
		"earnings", "profit", "revenue", "beat", "dividend", "payout",
		"merger", "acquisition", "ceo", "board", "government", "tax",
		"sector", "industry", "holiday", "ipo", "buyback", "split",
		"the", "company", "announced", "today", "strong", "results",
	)).Map(func(words []string) string {
		return strings.Join(words, " ")
	})
}

func TestCategorizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)
	c := New()

	valid := make(map[models.EventCategory]bool)
	for _, cat := range c.Categories() {
		valid[cat] = true
	}

	// Property: confidence is a probability-like score for any input,
	// including unicode noise and empty strings.
	properties.Property("confidence stays within [0,1] for arbitrary text", prop.ForAll(
		func(headline, content string) bool {
			result := c.Categorize(headline, content)
			return result.Confidence >= 0 && result.Confidence <= 1
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	// Property: the primary category is always drawn from the table,
	// never synthesized.
	properties.Property("primary category always comes from the table", prop.ForAll(
		func(text string) bool {
			result := c.Categorize(text, "")
			return valid[result.Primary]
		},
		genEventText(),
	))

	// Property: categorization has no hidden state; repeated calls agree.
	properties.Property("categorization is deterministic", prop.ForAll(
		func(text string) bool {
			first := c.Categorize(text, "")
			second := c.Categorize(text, "")
			return reflect.DeepEqual(first, second)
		},
		genEventText(),
	))

	// Property: every secondary sits between half the primary confidence
	// and the primary confidence itself, and never repeats the primary.
	properties.Property("secondaries stay above half the primary confidence", prop.ForAll(
		func(text string) bool {
			result := c.Categorize(text, "")
			for category, score := range result.Secondaries {
				if category == result.Primary {
					return false
				}
				if score < result.Confidence*secondaryShare || score > result.Confidence {
					return false
				}
			}
			return true
		},
		genEventText(),
	))

	properties.TestingRun(t)
}
