// Package categorize classifies news events into event categories using
// weighted keyword matching.
package categorize

import (
	"regexp"
	"strings"

	"stock-predictor/internal/analysis"
	"stock-predictor/internal/models"
)

// Scoring constants. The blend favors how dominant a category's matches are
// over how densely its keywords appear in the text.
const (
	// matchWeight scales the match-ratio term of the confidence blend.
	matchWeight = 0.7
	// densityWeight scales the keyword-density term of the confidence blend.
	densityWeight = 0.3
	// secondaryShare is the fraction of the primary confidence a category
	// must reach to qualify as a secondary category.
	secondaryShare = 0.5
	// noMatchConfidence is returned with the default category when no
	// keyword matches at all.
	noMatchConfidence = 0.1
)

// DefaultCategory is assigned when the text matches no category.
const DefaultCategory = models.CategorySector

// CategoryKeywords holds the keyword list and scalar weight for one category.
type CategoryKeywords struct {
	Category models.EventCategory
	Weight   float64
	Keywords []string
}

// DefaultTable returns the built-in category keyword table. Order matters:
// when two categories score exactly equal, the earlier entry wins.
func DefaultTable() []CategoryKeywords {
	return []CategoryKeywords{
		{
			Category: models.CategoryEarnings,
			Weight:   1.0,
			Keywords: []string{
				"earnings", "q1", "q2", "q3", "q4", "quarterly", "eps", "earnings per share",
				"revenue", "profit", "net income", "guidance", "forecast", "beat", "miss",
				"results", "financial results", "earnings release", "earnings call",
				"annual report", "fy", "fiscal year", "fye", "year-end results",
				"quarterly results", "ebitda", "operating income", "margin", "margins",
			},
		},
		{
			Category: models.CategoryPolicy,
			Weight:   1.0,
			Keywords: []string{
				"regulatory", "regulation", "policy", "government", "sec", "rbi", "tax",
				"subsidy", "tariff", "trade", "law", "legislation", "legal", "compliance",
				"cra", "fca", "doj", "antitrust", "ban", "restriction", "rule", "rules",
				"approval", "license", "permit", "agency", "federal", "administration",
				"parliament", "congress", "senate", "bill", "act", "fine", "penalty",
			},
		},
		{
			Category: models.CategorySeasonal,
			Weight:   0.9,
			Keywords: []string{
				"year-end", "q4", "holiday", "festival", "quarter-end", "year end",
				"seasonal", "fiscal quarter", "christmas", "thanksgiving",
				"diwali", "new year", "summer", "winter", "spring", "autumn", "quarterly close",
			},
		},
		{
			Category: models.CategoryTechnical,
			Weight:   1.0,
			Keywords: []string{
				"ipo", "split", "dividend", "buyback", "listing", "delisting", "spin-off",
				"merger", "acquisition", "takeover", "deal", "consolidation", "tender offer",
				"stock split", "reverse split", "share buyback", "share repurchase",
				"rights issue", "bonus issue", "dilution", "warrant", "convertible",
			},
		},
		{
			Category: models.CategorySector,
			Weight:   0.8,
			Keywords: []string{
				"industry", "sector", "competitor", "rival", "commodity", "oil", "gold",
				"market trend", "industry trend", "peer", "competition", "competitive",
				"technology", "retail", "healthcare", "banking", "energy", "automotive",
				"pharmaceutical", "consumer", "industrial", "infrastructure",
			},
		},
		{
			Category: models.CategoryMerger,
			Weight:   1.0,
			Keywords: []string{
				"merger", "acquisition", "takeover", "acquired", "acquires", "deal",
				"combination", "consolidation", "buyout", "bid", "offer", "purchase",
				"acquired by", "merged with", "joint venture", "partnership agreement",
				"strategic investment", "stake", "stake purchase",
			},
		},
		{
			Category: models.CategoryDividend,
			Weight:   1.0,
			Keywords: []string{
				"dividend", "payout", "distribution", "special dividend", "interim dividend",
				"final dividend", "dividend announcement", "yield", "dps", "ex-date",
				"record date", "payment date", "dividend increase", "dividend cut",
				"dividend suspension", "dividend per share",
			},
		},
		{
			Category: models.CategoryManagement,
			Weight:   1.0,
			Keywords: []string{
				"ceo", "cfo", "cto", "management", "executive", "appointed", "joins",
				"resignation", "retires", "retirement", "stepping down", "leadership",
				"board", "director", "president", "vice president", "founder", "chairman",
				"promotion", "new hire", "departure", "interim",
			},
		},
	}
}

// Categorizer classifies event text against an immutable keyword table.
// Construction compiles one word-boundary pattern per keyword; after that
// the categorizer is pure and safe for concurrent use.
type Categorizer struct {
	table    []CategoryKeywords
	patterns [][]*regexp.Regexp
}

// New creates a categorizer with the default keyword table.
func New() *Categorizer {
	return NewWithTable(DefaultTable())
}

// NewWithTable creates a categorizer with a custom keyword table.
func NewWithTable(table []CategoryKeywords) *Categorizer {
	patterns := make([][]*regexp.Regexp, len(table))
	for i, entry := range table {
		compiled := make([]*regexp.Regexp, len(entry.Keywords))
		for j, keyword := range entry.Keywords {
			compiled[j] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
		}
		patterns[i] = compiled
	}
	return &Categorizer{
		table:    table,
		patterns: patterns,
	}
}

// Categories returns the categories of the table in declaration order.
func (c *Categorizer) Categories() []models.EventCategory {
	cats := make([]models.EventCategory, len(c.table))
	for i, entry := range c.table {
		cats[i] = entry.Category
	}
	return cats
}

// Categorize classifies an event into a primary category with a confidence
// score and any secondary categories. Blank input yields the default
// category with zero confidence; input matching no keyword yields the
// default category with a low floor confidence. It never fails.
func (c *Categorizer) Categorize(headline, content string) analysis.Categorization {
	combined := strings.TrimSpace(headline + " " + content)
	if combined == "" {
		return analysis.Categorization{
			Primary:    DefaultCategory,
			Confidence: 0.0,
		}
	}

	// Count keyword matches per category
	counts := make([]int, len(c.table))
	maxCount := 0
	for i, patterns := range c.patterns {
		for _, pattern := range patterns {
			counts[i] += len(pattern.FindAllStringIndex(combined, -1))
		}
		if counts[i] > maxCount {
			maxCount = counts[i]
		}
	}

	if maxCount == 0 {
		return analysis.Categorization{
			Primary:     DefaultCategory,
			Confidence:  noMatchConfidence,
			Secondaries: nil,
		}
	}

	// Confidence per matched category: dominance of its match count blended
	// with keyword density relative to text length.
	wordCount := float64(len(strings.Fields(combined)))
	denom := wordCount / 10
	if denom < 1 {
		denom = 1
	}

	scores := make(map[models.EventCategory]float64, len(c.table))
	primary := DefaultCategory
	primaryScore := -1.0
	for i, entry := range c.table {
		if counts[i] == 0 {
			continue
		}
		matchRatio := float64(counts[i]) / float64(maxCount)
		density := float64(counts[i]) / denom
		if density > 1 {
			density = 1
		}

		confidence := matchRatio*entry.Weight*matchWeight + density*entry.Weight*densityWeight
		confidence = analysis.Clamp01(confidence)
		scores[entry.Category] = confidence

		// Strict comparison keeps the earlier table entry on exact ties.
		if confidence > primaryScore {
			primary = entry.Category
			primaryScore = confidence
		}
	}

	secondaries := make(map[models.EventCategory]float64)
	threshold := primaryScore * secondaryShare
	for category, score := range scores {
		if category != primary && score >= threshold {
			secondaries[category] = score
		}
	}
	if len(secondaries) == 0 {
		secondaries = nil
	}

	return analysis.Categorization{
		Primary:     primary,
		Confidence:  primaryScore,
		Secondaries: secondaries,
	}
}
