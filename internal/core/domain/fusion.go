package domain

// AggFunc names a reduction applied to measures during aggregation.
type AggFunc string

const (
	AggSum   AggFunc = "sum"
	AggMean  AggFunc = "mean"
	AggCount AggFunc = "count"
)

// StatisticKind names a derived statistic attached to a fusion result.
type StatisticKind string

const (
	StatCorrelation StatisticKind = "correlation"
	StatTrendSlope  StatisticKind = "trend_slope"
)

// Statistic is a single derived value computed over fused rows.
type Statistic struct {
	Kind       StatisticKind `json:"kind"`
	Value      float64       `json:"value"`
	SampleSize int           `json:"sample_size"`
}

// TimeSeriesPoint is one resampled period of an aligned series. Gap marks a
// period the requested range covers but the data does not.
type TimeSeriesPoint struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"`
	Gap    bool    `json:"gap,omitempty"`
}

// AlignedPair is one dimension-aligned observation of two measure series.
type AlignedPair struct {
	Key string  `json:"key"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

// MeasureSeries selects one numeric measure across a set of records.
type MeasureSeries struct {
	Records []DatasetRecord
	Measure string
}

// FusionResult is the computed structured half of an answer. Completeness is
// (rows actually available) / (rows the requested dimension ranges expect);
// a requested range that is silently unserved must show up as a value below 1.
type FusionResult struct {
	Rows         []DatasetRecord   `json:"rows,omitempty"`
	Timeseries   []TimeSeriesPoint `json:"timeseries,omitempty"`
	Pairs        []AlignedPair     `json:"pairs,omitempty"`
	GroupKeys    []string          `json:"group_keys,omitempty"`
	Measures     []string          `json:"measures,omitempty"`
	Statistic    *Statistic        `json:"statistic,omitempty"`
	Completeness float64           `json:"completeness"`
	Note         string            `json:"note,omitempty"`
}

// Empty reports whether fusion produced no structured data at all.
func (f FusionResult) Empty() bool {
	return f.Completeness == 0
}
