package domain

// QueryState tracks one query through its lifecycle. Any stage may move to
// StateDegraded instead of propagating a recoverable failure; StateRejected
// is reached only from StateReceived on invalid input.
type QueryState string

const (
	StateReceived    QueryState = "received"
	StateRouted      QueryState = "routed"
	StateRetrieving  QueryState = "retrieving"
	StateFusing      QueryState = "fusing"
	StateComposing   QueryState = "composing"
	StateVisualizing QueryState = "visualizing"
	StateCompleted   QueryState = "completed"
	StateDegraded    QueryState = "degraded"
	StateRejected    QueryState = "rejected"
)

// MaxQueryChars bounds accepted query length. Longer input is rejected as
// invalid before entering the pipeline.
const MaxQueryChars = 2000

// QueryRequest is the engine's inbound query contract.
type QueryRequest struct {
	Query                string `json:"query"`
	PolicyMode           bool   `json:"policy_mode,omitempty"`
	IncludeVisualization bool   `json:"include_visualization,omitempty"`
}

// QueryResponse is the engine's outbound contract for one answered query.
type QueryResponse struct {
	Answer         string         `json:"answer"`
	Sources        []SourceRef    `json:"sources"`
	Confidence     float64        `json:"confidence"`
	PolicyInsights string         `json:"policy_insights,omitempty"`
	Visualization  *Visualization `json:"visualization,omitempty"`
	Intent         IntentCategory `json:"intent"`
	Degraded       bool           `json:"degraded,omitempty"`
}
