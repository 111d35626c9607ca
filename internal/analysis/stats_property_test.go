package analysis

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestStatsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	// Property: the correlation coefficient never escapes [-1, +1]
	// whatever the sample values look like.
	properties.Property("pearson stays within [-1,+1]", prop.ForAll(
		func(xs, ys []float64) bool {
			r := Pearson(xs, ys)
			return r >= -1 && r <= 1
		},
		gen.SliceOfN(12, gen.Float64Range(-100, 100)),
		gen.SliceOfN(12, gen.Float64Range(-100, 100)),
	))

	// Property: below two points there is no correlation to measure.
	properties.Property("pearson is exactly zero below two points", prop.ForAll(
		func(x, y float64) bool {
			return Pearson(nil, nil) == 0 &&
				Pearson([]float64{x}, []float64{y}) == 0
		},
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
	))

	// Property: a series correlates perfectly with any positive affine
	// image of itself.
	properties.Property("pearson of an increasing affine image is one", prop.ForAll(
		func(xs []float64, scale, shift float64) bool {
			distinct := false
			for _, x := range xs {
				if x != xs[0] {
					distinct = true
					break
				}
			}
			if !distinct {
				return true
			}
			ys := make([]float64, len(xs))
			for i, x := range xs {
				ys[i] = scale*x + shift
			}
			return Pearson(xs, ys) > 0.999999
		},
		gen.SliceOfN(8, gen.Float64Range(-50, 50)),
		gen.Float64Range(0.1, 10),
		gen.Float64Range(-100, 100),
	))

	// Property: a percentile of a non-empty sample lies between its
	// minimum and maximum.
	properties.Property("percentile stays within the sample range", prop.ForAll(
		func(values []float64, p float64) bool {
			lo, hi := values[0], values[0]
			for _, v := range values {
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
			got := Percentile(values, p)
			return got >= lo-1e-9 && got <= hi+1e-9
		},
		gen.SliceOfN(9, gen.Float64Range(-100, 100)),
		gen.Float64Range(0, 100),
	))

	// Property: the population standard deviation is never negative and
	// collapses to rounding noise for constant series.
	properties.Property("stddev is non-negative, near zero for constants", prop.ForAll(
		func(values []float64, c float64) bool {
			if PopStdDev(values) < 0 {
				return false
			}
			constant := []float64{c, c, c, c}
			return PopStdDev(constant) < 1e-9
		},
		gen.SliceOfN(10, gen.Float64Range(-100, 100)),
		gen.Float64Range(-100, 100),
	))

	properties.TestingRun(t)
}
