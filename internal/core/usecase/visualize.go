package usecase

import (
	"fmt"
	"strconv"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
)

// maxSampleRows bounds the tabular preview carried in a visualization.
const maxSampleRows = 20

// VisualizationSelector deterministically maps an intent plus fusion shape to
// a chart. The same inputs always pick the same chart type.
type VisualizationSelector struct{}

func NewVisualizationSelector() *VisualizationSelector {
	return &VisualizationSelector{}
}

// Select returns nil when the fusion result is empty; a chart over no data is
// worse than no chart.
func (s *VisualizationSelector) Select(intent domain.QueryIntent, fr domain.FusionResult) *domain.Visualization {
	if fr.Empty() {
		return nil
	}

	switch {
	case intent.Category == domain.IntentGeographic && groupedBy(fr, domain.DimensionState):
		return s.choropleth(fr)
	case (intent.Category == domain.IntentTrend || intent.Category == domain.IntentPolicy) && len(fr.Timeseries) > 0:
		return s.line(fr)
	case intent.Category == domain.IntentComparison && len(fr.GroupKeys) > 0 && len(fr.Rows) > 0:
		return s.bar(fr)
	case intent.Category == domain.IntentCorrelation && len(fr.Pairs) > 0:
		return s.scatter(fr)
	default:
		return s.table(fr)
	}
}

func (s *VisualizationSelector) line(fr domain.FusionResult) *domain.Visualization {
	series := domain.Series{Name: measureName(fr)}
	for _, p := range fr.Timeseries {
		series.Points = append(series.Points, domain.SeriesPoint{
			Label: strconv.Itoa(p.Period),
			X:     float64(p.Period),
			Y:     p.Value,
			Gap:   p.Gap,
		})
	}
	return &domain.Visualization{
		Type:        domain.ChartLine,
		EncodedData: []domain.Series{series},
		DataSummary: summarize(fr),
	}
}

func (s *VisualizationSelector) bar(fr domain.FusionResult) *domain.Visualization {
	return s.groupedChart(fr, domain.ChartBar)
}

func (s *VisualizationSelector) choropleth(fr domain.FusionResult) *domain.Visualization {
	return s.groupedChart(fr, domain.ChartChoropleth)
}

func (s *VisualizationSelector) groupedChart(fr domain.FusionResult, kind domain.ChartType) *domain.Visualization {
	measure := measureName(fr)
	series := domain.Series{Name: measure}
	for _, rec := range fr.Rows {
		label := groupLabel(rec, fr.GroupKeys)
		series.Points = append(series.Points, domain.SeriesPoint{
			Label: label,
			Y:     rec.Measures[measure],
		})
	}
	return &domain.Visualization{
		Type:        kind,
		EncodedData: []domain.Series{series},
		DataSummary: summarize(fr),
	}
}

func (s *VisualizationSelector) scatter(fr domain.FusionResult) *domain.Visualization {
	series := domain.Series{Name: measureName(fr)}
	for _, pair := range fr.Pairs {
		series.Points = append(series.Points, domain.SeriesPoint{
			Label: pair.Key,
			X:     pair.X,
			Y:     pair.Y,
		})
	}
	return &domain.Visualization{
		Type:        domain.ChartScatter,
		EncodedData: []domain.Series{series},
		DataSummary: summarize(fr),
	}
}

func (s *VisualizationSelector) table(fr domain.FusionResult) *domain.Visualization {
	return &domain.Visualization{
		Type:        domain.ChartTable,
		DataSummary: summarize(fr),
	}
}

func groupedBy(fr domain.FusionResult, key string) bool {
	return len(fr.GroupKeys) == 1 && fr.GroupKeys[0] == key && len(fr.Rows) > 0
}

func measureName(fr domain.FusionResult) string {
	if len(fr.Measures) > 0 {
		return fr.Measures[0]
	}
	return "value"
}

func groupLabel(rec domain.DatasetRecord, keys []string) string {
	var parts []string
	for _, key := range keys {
		if v, ok := rec.Dimensions.Get(key); ok {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return rec.Dataset
	}
	label := parts[0]
	for _, p := range parts[1:] {
		label += " " + p
	}
	return label
}

// summarize tabulates rows with dimensions first, then measures in sorted
// order, capped at maxSampleRows.
func summarize(fr domain.FusionResult) domain.DataSummary {
	summary := domain.DataSummary{RowCount: len(fr.Rows)}
	if len(fr.Rows) == 0 {
		return summary
	}

	first := fr.Rows[0]
	for _, dim := range first.Dimensions {
		summary.Columns = append(summary.Columns, dim.Key)
	}
	measures := first.MeasureNames()
	summary.Columns = append(summary.Columns, measures...)
	summary.NumericColumns = append([]string(nil), measures...)

	for i, rec := range fr.Rows {
		if i == maxSampleRows {
			break
		}
		row := make([]string, 0, len(summary.Columns))
		for _, dim := range first.Dimensions {
			v, _ := rec.Dimensions.Get(dim.Key)
			row = append(row, v)
		}
		for _, m := range measures {
			row = append(row, fmt.Sprintf("%.4g", rec.Measures[m]))
		}
		summary.SampleRows = append(summary.SampleRows, row)
	}
	return summary
}
