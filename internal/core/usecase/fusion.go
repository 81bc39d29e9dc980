package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
	"github.com/agrisense/agrisense-engine/internal/core/ports"
)

// FusionEngine decides which structured operations serve an intent and runs
// them against one store snapshot. Structured failures (missing dataset,
// insufficient data, join mismatches) are caught here and folded into a
// zero-completeness result with a note; the composer decides how to degrade.
type FusionEngine struct{}

func NewFusionEngine() *FusionEngine {
	return &FusionEngine{}
}

func (e *FusionEngine) Compute(snap ports.StoreSnapshot, intent domain.QueryIntent) domain.FusionResult {
	switch intent.Category {
	case domain.IntentTrend:
		return e.computeTrend(snap, intent)
	case domain.IntentComparison:
		return e.computeComparison(snap, intent)
	case domain.IntentCorrelation:
		return e.computeCorrelation(snap, intent)
	case domain.IntentGeographic:
		return e.computeGeographic(snap, intent)
	case domain.IntentPolicy:
		// Policy insights layer on whatever numeric evidence exists; a
		// trend plan is the most useful substrate.
		return e.computeTrend(snap, intent)
	default:
		return e.computeGeneral(snap, intent)
	}
}

func (e *FusionEngine) computeTrend(snap ports.StoreSnapshot, intent domain.QueryIntent) domain.FusionResult {
	metric, ok := primaryMetric(intent.Entities)
	if !ok {
		return noData("no resolvable metric for a trend computation")
	}
	dataset, ok := datasetForMeasure(snap, metric)
	if !ok {
		return noData(fmt.Sprintf("no ingested dataset carries measure %q", metric))
	}

	rows, err := snap.Filter(dataset, entityPredicate(intent.Entities))
	if err != nil {
		return noData(err.Error())
	}
	if len(rows) == 0 {
		return noData(fmt.Sprintf("dataset %q has no rows matching the requested entities", dataset))
	}

	years := closeYearRange(intent.Entities.Years, rows)
	series := snap.AlignTimeseries(rows, metric, years)
	if len(series) == 0 {
		return noData(fmt.Sprintf("dataset %q has no yearly observations of %q", dataset, metric))
	}

	observed := 0
	for _, point := range series {
		if !point.Gap {
			observed++
		}
	}
	result := domain.FusionResult{
		Rows:         rows,
		Timeseries:   series,
		GroupKeys:    []string{domain.DimensionYear},
		Measures:     []string{metric},
		Completeness: float64(observed) / float64(len(series)),
	}
	if observed < len(series) {
		result.Note = fmt.Sprintf("%d of %d requested years have no data", len(series)-observed, len(series))
	}
	if slope, ok := trendSlope(series); ok {
		result.Statistic = &domain.Statistic{Kind: domain.StatTrendSlope, Value: slope, SampleSize: observed}
	}
	return result
}

func (e *FusionEngine) computeComparison(snap ports.StoreSnapshot, intent domain.QueryIntent) domain.FusionResult {
	metric, ok := primaryMetric(intent.Entities)
	if !ok {
		return noData("no resolvable metric for a comparison")
	}
	dataset, ok := datasetForMeasure(snap, metric)
	if !ok {
		return noData(fmt.Sprintf("no ingested dataset carries measure %q", metric))
	}

	compareBy := domain.DimensionState
	expected := len(intent.Entities.States)
	if len(intent.Entities.Crops) > len(intent.Entities.States) {
		compareBy = domain.DimensionCrop
		expected = len(intent.Entities.Crops)
	}

	rows, err := snap.Filter(dataset, entityPredicate(intent.Entities))
	if err != nil {
		return noData(err.Error())
	}
	groups, err := snap.Aggregate(rows, []string{compareBy}, domain.AggMean)
	if err != nil {
		return noData(err.Error())
	}
	if len(groups) == 0 {
		return noData(fmt.Sprintf("dataset %q has no rows for the requested %ss", dataset, compareBy))
	}

	completeness := 1.0
	var note string
	if expected > 0 {
		completeness = float64(len(groups)) / float64(expected)
		if completeness > 1 {
			completeness = 1
		}
		if len(groups) < expected {
			note = fmt.Sprintf("%d of %d requested %ss are present", len(groups), expected, compareBy)
		}
	}
	return domain.FusionResult{
		Rows:         groups,
		GroupKeys:    []string{compareBy},
		Measures:     []string{metric},
		Completeness: completeness,
		Note:         note,
	}
}

func (e *FusionEngine) computeCorrelation(snap ports.StoreSnapshot, intent domain.QueryIntent) domain.FusionResult {
	metricA, metricB, ok := correlationMetrics(intent.Entities)
	if !ok {
		return noData("a correlation needs two resolvable metrics")
	}
	datasetA, okA := datasetForMeasure(snap, metricA)
	datasetB, okB := datasetForMeasure(snap, metricB)
	if !okA || !okB {
		return noData(fmt.Sprintf("no ingested dataset pair carries measures %q and %q", metricA, metricB))
	}

	rowsA, err := snap.Filter(datasetA, entityPredicate(intent.Entities))
	if err != nil {
		return noData(err.Error())
	}
	rowsB, err := snap.Filter(datasetB, entityPredicate(intent.Entities))
	if err != nil {
		return noData(err.Error())
	}

	stat, pairs, err := snap.Correlate(
		domain.MeasureSeries{Records: rowsA, Measure: metricA},
		domain.MeasureSeries{Records: rowsB, Measure: metricB},
		nil,
	)
	if err != nil {
		return noData(err.Error())
	}

	result := domain.FusionResult{
		Pairs:        pairs,
		Measures:     []string{metricA, metricB},
		Statistic:    &stat,
		Completeness: completenessFor(intent.Entities, len(pairs)),
	}
	if datasetA != datasetB {
		if joined, joinErr := snap.Join([]string{datasetA, datasetB}, nil); joinErr == nil {
			result.Rows = joined
		}
	} else {
		result.Rows = rowsA
	}
	return result
}

func (e *FusionEngine) computeGeographic(snap ports.StoreSnapshot, intent domain.QueryIntent) domain.FusionResult {
	metric, ok := primaryMetric(intent.Entities)
	if !ok {
		return noData("no resolvable metric for a geographic breakdown")
	}
	dataset, ok := datasetForMeasure(snap, metric)
	if !ok {
		return noData(fmt.Sprintf("no ingested dataset carries measure %q", metric))
	}

	// States are the map surface, so the filter keeps all of them.
	entities := intent.Entities
	entities.States = nil
	rows, err := snap.Filter(dataset, entityPredicate(entities))
	if err != nil {
		return noData(err.Error())
	}
	groups, err := snap.Aggregate(rows, []string{domain.DimensionState}, domain.AggMean)
	if err != nil {
		return noData(err.Error())
	}
	if len(groups) == 0 {
		return noData(fmt.Sprintf("dataset %q carries no state-keyed rows", dataset))
	}
	return domain.FusionResult{
		Rows:         groups,
		GroupKeys:    []string{domain.DimensionState},
		Measures:     []string{metric},
		Completeness: 1,
	}
}

func (e *FusionEngine) computeGeneral(snap ports.StoreSnapshot, intent domain.QueryIntent) domain.FusionResult {
	metric, ok := primaryMetric(intent.Entities)
	if !ok {
		return noData("retrieval-only question, no structured entities resolved")
	}
	dataset, ok := datasetForMeasure(snap, metric)
	if !ok {
		return noData(fmt.Sprintf("no ingested dataset carries measure %q", metric))
	}
	rows, err := snap.Filter(dataset, entityPredicate(intent.Entities))
	if err != nil {
		return noData(err.Error())
	}
	if len(rows) == 0 {
		return noData(fmt.Sprintf("dataset %q has no rows matching the requested entities", dataset))
	}
	return domain.FusionResult{
		Rows:         rows,
		Measures:     []string{metric},
		Completeness: completenessFor(intent.Entities, len(rows)),
	}
}

func noData(note string) domain.FusionResult {
	return domain.FusionResult{Completeness: 0, Note: note}
}

// primaryMetric picks the measure a single-metric plan runs over. Crop
// questions without an explicit metric default to production.
func primaryMetric(entities domain.QueryEntities) (string, bool) {
	if len(entities.Metrics) > 0 {
		return entities.Metrics[0], true
	}
	if len(entities.Crops) > 0 {
		return "production", true
	}
	return "", false
}

func correlationMetrics(entities domain.QueryEntities) (string, string, bool) {
	if len(entities.Metrics) >= 2 {
		return entities.Metrics[0], entities.Metrics[1], true
	}
	if len(entities.Metrics) == 1 && len(entities.Crops) > 0 && entities.Metrics[0] != "production" {
		return entities.Metrics[0], "production", true
	}
	return "", "", false
}

// datasetForMeasure finds the first dataset (by name order) whose rows carry
// the measure.
func datasetForMeasure(snap ports.StoreSnapshot, measure string) (string, bool) {
	infos := snap.Datasets()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	for _, info := range infos {
		for _, m := range info.Measures {
			if m == measure {
				return info.Name, true
			}
		}
	}
	return "", false
}

// entityPredicate narrows records to the resolved entities. Unresolved
// mentions never reach this point.
func entityPredicate(entities domain.QueryEntities) func(domain.DatasetRecord) bool {
	return func(rec domain.DatasetRecord) bool {
		if len(entities.States) > 0 {
			state, ok := rec.Dimensions.Get(domain.DimensionState)
			if !ok || !containsString(entities.States, state) {
				return false
			}
		}
		if len(entities.Crops) > 0 {
			if crop, ok := rec.Dimensions.Get(domain.DimensionCrop); ok && !containsString(entities.Crops, crop) {
				return false
			}
		}
		if year, ok := rec.Dimensions.Year(); ok && !entities.Years.Contains(year) {
			return false
		}
		return true
	}
}

// closeYearRange turns an open or absent range into a concrete one using the
// observed data, so alignment always has bounds.
func closeYearRange(years domain.YearRange, rows []domain.DatasetRecord) domain.YearRange {
	if years.From != 0 && years.To != 0 {
		return years
	}
	minYear, maxYear := 0, 0
	for _, rec := range rows {
		year, ok := rec.Dimensions.Year()
		if !ok {
			continue
		}
		if minYear == 0 || year < minYear {
			minYear = year
		}
		if year > maxYear {
			maxYear = year
		}
	}
	if years.From != 0 {
		return domain.YearRange{From: years.From, To: maxYear}
	}
	return domain.YearRange{From: minYear, To: maxYear}
}

// completenessFor relates rows delivered to rows the dimension ranges
// request. Without an explicit request shape, any data counts as complete.
func completenessFor(entities domain.QueryEntities, rows int) float64 {
	expected := 0
	span := entities.Years.Span()
	switch {
	case span > 0 && len(entities.States) > 0:
		expected = span * len(entities.States)
	case span > 0:
		expected = span
	case len(entities.States) > 0:
		expected = len(entities.States)
	}
	if expected == 0 {
		if rows > 0 {
			return 1
		}
		return 0
	}
	c := float64(rows) / float64(expected)
	if c > 1 {
		return 1
	}
	return c
}

// trendSlope fits value = a + b*period by least squares over non-gap points.
func trendSlope(series []domain.TimeSeriesPoint) (float64, bool) {
	var n, sumX, sumY, sumXX, sumXY float64
	for _, p := range series {
		if p.Gap {
			continue
		}
		x := float64(p.Period)
		n++
		sumX += x
		sumY += p.Value
		sumXX += x * x
		sumXY += x * p.Value
	}
	if n < 2 {
		return 0, false
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, false
	}
	return (n*sumXY - sumX*sumY) / denom, true
}

// containsString is case-insensitive: canonical entities are title-cased
// while harmonized dimension values are stored lowercase.
func containsString(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
