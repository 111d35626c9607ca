package predict

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stock-predictor/internal/models"
)

func genScoredEvent() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.NewsEvent{}), map[string]gopter.Gen{
		"EventDate": gen.IntRange(0, 90).Map(func(daysAgo int) time.Time {
			return asOf.AddDate(0, 0, -daysAgo)
		}),
		"SentimentScore": gen.Float64Range(-1, 1),
		"SentimentCategory": gen.OneConstOf(
			models.SentimentPositive,
			models.SentimentNeutral,
			models.SentimentNegative,
			models.SentimentCategory(""),
		),
	})
}

func genCorrelationRecord() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.CorrelationRecord{}), map[string]gopter.Gen{
		"WinRate":      gen.Float64Range(0, 1),
		"SampleSize":   gen.IntRange(0, 60),
		"AvgChangePct": gen.Float64Range(-10, 10),
		"Direction": gen.OneConstOf(
			models.DirectionUp,
			models.DirectionDown,
			models.DirectionFlat,
		),
		"DaysToMove": gen.IntRange(0, 9),
	})
}

func TestScoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("components bounded and overall is their weighted blend", prop.ForAll(
		func(events []models.NewsEvent, correlations []models.CorrelationRecord) bool {
			rec := New().Score(events, correlations, asOf)

			for _, component := range []int{
				rec.InformationScore, rec.PatternScore, rec.TimingScore, rec.DirectionScore,
			} {
				if component < 0 || component > 100 {
					return false
				}
			}

			w := DefaultWeights()
			expected := int(float64(rec.InformationScore)*w.Information +
				float64(rec.PatternScore)*w.Pattern +
				float64(rec.TimingScore)*w.Timing +
				float64(rec.DirectionScore)*w.Direction)
			if expected < 0 {
				expected = 0
			}
			if expected > 100 {
				expected = 100
			}
			return rec.OverallScore == expected
		},
		gen.SliceOfN(10, genScoredEvent()),
		gen.SliceOfN(6, genCorrelationRecord()),
	))

	properties.Property("confidence stays within 0..1", prop.ForAll(
		func(events []models.NewsEvent, correlations []models.CorrelationRecord) bool {
			rec := New().Score(events, correlations, asOf)
			return rec.Confidence >= 0 && rec.Confidence <= 1
		},
		gen.SliceOfN(10, genScoredEvent()),
		gen.SliceOfN(6, genCorrelationRecord()),
	))

	properties.Property("prediction fields stay consistent", prop.ForAll(
		func(events []models.NewsEvent, correlations []models.CorrelationRecord) bool {
			p := New().Score(events, correlations, asOf).Prediction

			if p.MagnitudeLow > p.MagnitudeHigh {
				return false
			}
			if p.TimingDays < 0 {
				return false
			}
			if p.WinRate < 0 || p.WinRate > 1 {
				return false
			}
			switch p.Direction {
			case models.DirectionUp, models.DirectionDown, models.DirectionSideways:
				return true
			}
			return false
		},
		gen.SliceOfN(10, genScoredEvent()),
		gen.SliceOfN(6, genCorrelationRecord()),
	))

	properties.Property("scoring is deterministic", prop.ForAll(
		func(events []models.NewsEvent, correlations []models.CorrelationRecord) bool {
			first := New().Score(events, correlations, asOf)
			second := New().Score(events, correlations, asOf)
			return reflect.DeepEqual(first, second)
		},
		gen.SliceOfN(8, genScoredEvent()),
		gen.SliceOfN(4, genCorrelationRecord()),
	))

	properties.TestingRun(t)
}
