package domain

// SourceRef points at one dataset row an answer is grounded on.
type SourceRef struct {
	Dataset string `json:"dataset"`
	RowID   string `json:"row_id,omitempty"`
}

// Answer is the composed, grounded reply to one query.
type Answer struct {
	Text           string      `json:"text"`
	Sources        []SourceRef `json:"sources"`
	Confidence     float64     `json:"confidence"`
	PolicyInsights string      `json:"policy_insights,omitempty"`
	Degraded       bool        `json:"degraded,omitempty"`
}
