package domain

// IntentCategory classifies what kind of answer a raw question is asking for.
type IntentCategory string

const (
	IntentTrend       IntentCategory = "trend"
	IntentComparison  IntentCategory = "comparison"
	IntentCorrelation IntentCategory = "correlation"
	IntentGeographic  IntentCategory = "geographic"
	IntentPolicy      IntentCategory = "policy"
	IntentGeneral     IntentCategory = "general"
)

// YearRange is a range of years. The zero value means "no year constraint";
// To == 0 with a set From means "From onward" (an open upper bound).
type YearRange struct {
	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`
}

func (y YearRange) IsZero() bool {
	return y.From == 0 && y.To == 0
}

// Span is the number of yearly periods the range requests.
func (y YearRange) Span() int {
	if y.IsZero() || y.To < y.From {
		return 0
	}
	return y.To - y.From + 1
}

func (y YearRange) Contains(year int) bool {
	if y.From != 0 && year < y.From {
		return false
	}
	if y.To != 0 && year > y.To {
		return false
	}
	return true
}

// QueryEntities holds the canonical entities resolved from a raw question.
type QueryEntities struct {
	States  []string  `json:"states,omitempty"`
	Crops   []string  `json:"crops,omitempty"`
	Metrics []string  `json:"metrics,omitempty"`
	Years   YearRange `json:"years,omitempty"`
}

// QueryIntent is the router's classification of a raw question. Mentions that
// failed canonical resolution are listed in UnresolvedEntities and are never
// used in structured queries.
type QueryIntent struct {
	Category           IntentCategory `json:"category"`
	Entities           QueryEntities  `json:"entities"`
	UnresolvedEntities []string       `json:"unresolved_entities,omitempty"`
}
