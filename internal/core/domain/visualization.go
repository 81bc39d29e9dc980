package domain

// ChartType enumerates the supported visualization encodings.
type ChartType string

const (
	ChartLine       ChartType = "line"
	ChartBar        ChartType = "bar"
	ChartScatter    ChartType = "scatter"
	ChartChoropleth ChartType = "choropleth"
	ChartTable      ChartType = "table"
)

// SeriesPoint is one encoded datum. Label carries the category or region for
// bar/choropleth encodings; X/Y carry numeric coordinates for line/scatter.
type SeriesPoint struct {
	Label string  `json:"label,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y"`
	Gap   bool    `json:"gap,omitempty"`
}

// Series is one named sequence of encoded points.
type Series struct {
	Name   string        `json:"name"`
	Points []SeriesPoint `json:"points"`
}

// DataSummary gives the UI a bounded preview of the underlying table.
type DataSummary struct {
	RowCount       int        `json:"row_count"`
	Columns        []string   `json:"columns"`
	NumericColumns []string   `json:"numeric_columns"`
	SampleRows     [][]string `json:"sample_rows"`
}

// Visualization is a chart encoding derived solely from intent category and
// fusion result shape.
type Visualization struct {
	Type        ChartType   `json:"type"`
	EncodedData []Series    `json:"encoded_data"`
	DataSummary DataSummary `json:"data_summary"`
}
