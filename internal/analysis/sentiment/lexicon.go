package sentiment

// Lexicon holds the weighted word lists driving sentiment scoring. Weights
// express how strongly a word signals its polarity. Negations flip the
// polarity of the word that follows them; intensifiers scale its weight,
// with values below 1.0 acting as dampeners.
type Lexicon struct {
	Positive     map[string]float64
	Negative     map[string]float64
	Negations    map[string]bool
	Intensifiers map[string]float64
}

// DefaultLexicon returns the built-in financial news lexicon.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Positive: map[string]float64{
			"gain":         1.0,
			"surge":        1.0,
			"profit":       1.0,
			"strong":       0.8,
			"bullish":      1.0,
			"positive":     0.8,
			"growth":       0.9,
			"win":          0.9,
			"excellent":    1.0,
			"beat":         0.9,
			"recovery":     0.8,
			"upbeat":       1.0,
			"outperform":   0.9,
			"outperforms":  0.9,
			"upgrade":      0.9,
			"rally":        1.0,
			"soar":         1.0,
			"jump":         0.8,
			"spike":        0.8,
			"strength":     0.8,
			"robust":       0.8,
			"accelerate":   0.8,
			"momentum":     0.8,
			"opportunity":  0.7,
			"success":      0.9,
			"successful":   0.9,
			"best":         0.8,
			"better":       0.7,
			"improve":      0.8,
			"improvement":  0.8,
			"boost":        0.8,
			"buy":          0.8,
			"optimistic":   0.8,
			"optimism":     0.8,
			"rebound":      0.8,
			"expansion":    0.8,
			"lead":         0.7,
			"leader":       0.7,
			"leading":      0.7,
			"innovative":   0.8,
			"innovation":   0.8,
			"advanced":     0.7,
			"exceed":       0.8,
			"exceeded":     0.8,
			"boom":         0.9,
			"breakthrough": 0.9,
		},
		Negative: map[string]float64{
			"loss":         1.0,
			"losses":       0.9,
			"drop":         0.9,
			"decline":      0.9,
			"weak":         0.8,
			"bearish":      1.0,
			"negative":     0.8,
			"falling":      0.9,
			"miss":         0.9,
			"poor":         0.8,
			"warning":      0.9,
			"risk":         0.7,
			"challenge":    0.7,
			"challenges":   0.7,
			"difficult":    0.7,
			"downturn":     0.9,
			"sell":         0.8,
			"underperform": 0.9,
			"downgrade":    0.9,
			"fail":         0.9,
			"failure":      0.9,
			"slump":        0.9,
			"plunge":       1.0,
			"crash":        1.0,
			"collapse":     1.0,
			"crumble":      1.0,
			"worse":        0.8,
			"worst":        0.9,
			"struggle":     0.8,
			"struggling":   0.8,
			"concern":      0.7,
			"concerns":     0.7,
			"uncertainty":  0.7,
			"bad":          0.8,
			"terrible":     1.0,
			"awful":        1.0,
			"horrible":     1.0,
			"dismal":       1.0,
			"deficit":      0.8,
			"lower":        0.7,
			"decrease":     0.7,
			"hurt":         0.8,
			"threat":       0.8,
			"threatened":   0.8,
			"recession":    0.8,
			"crisis":       0.9,
			"fraud":        1.0,
			"scandal":      1.0,
			"bankruptcy":   1.0,
			"bankrupt":     1.0,
		},
		Negations: map[string]bool{
			"not":      true,
			"no":       true,
			"neither":  true,
			"never":    true,
			"cannot":   true,
			"can't":    true,
			"isn't":    true,
			"doesn't":  true,
			"didn't":   true,
			"won't":    true,
			"wouldn't": true,
		},
		Intensifiers: map[string]float64{
			"very":          1.5,
			"extremely":     1.7,
			"incredibly":    1.6,
			"remarkably":    1.5,
			"significantly": 1.4,
			"substantially": 1.4,
			"moderately":    0.8,
			"somewhat":      0.7,
			"slightly":      0.5,
			"barely":        0.4,
		},
	}
}
