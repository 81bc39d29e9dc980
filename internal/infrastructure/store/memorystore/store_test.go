package memorystore

import (
	"strconv"
	"testing"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
)

func rec(dataset, state string, year int, measures map[string]float64) domain.DatasetRecord {
	return domain.DatasetRecord{
		Dataset: dataset,
		Dimensions: domain.Dimensions{
			{Key: domain.DimensionState, Value: state},
			{Key: domain.DimensionYear, Value: strconv.Itoa(year)},
		},
		Measures: measures,
	}
}

func TestReplaceAndDatasets(t *testing.T) {
	store := New()
	store.Replace([]domain.DatasetRecord{
		rec("rainfall", "punjab", 2020, map[string]float64{"rainfall": 600}),
		rec("crop_production", "punjab", 2020, map[string]float64{"production": 100}),
		rec("rainfall", "haryana", 2020, map[string]float64{"rainfall": 500}),
	})

	infos := store.Snapshot().Datasets()
	if len(infos) != 2 {
		t.Fatalf("datasets = %d, want 2", len(infos))
	}
	// Ordered by name.
	if infos[0].Name != "crop_production" || infos[1].Name != "rainfall" {
		t.Fatalf("order = %s, %s", infos[0].Name, infos[1].Name)
	}
	if infos[1].Rows != 2 {
		t.Fatalf("rainfall rows = %d, want 2", infos[1].Rows)
	}
	if len(infos[1].Measures) != 1 || infos[1].Measures[0] != "rainfall" {
		t.Fatalf("rainfall measures = %v", infos[1].Measures)
	}
}

func TestFilterUnknownDataset(t *testing.T) {
	store := New()
	_, err := store.Snapshot().Filter("missing", nil)
	if !domain.IsKind(err, domain.ErrDatasetNotFound) {
		t.Fatalf("error = %v, want ErrDatasetNotFound", err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	store := New()
	store.Replace([]domain.DatasetRecord{
		rec("rainfall", "punjab", 2020, map[string]float64{"rainfall": 600}),
	})

	snap := store.Snapshot()
	store.Replace([]domain.DatasetRecord{
		rec("crop_production", "punjab", 2020, map[string]float64{"production": 100}),
	})

	if !snap.Has("rainfall") {
		t.Fatalf("earlier snapshot must keep serving its generation")
	}
	if snap.Has("crop_production") {
		t.Fatalf("earlier snapshot must not see the new generation")
	}
	if !store.Snapshot().Has("crop_production") {
		t.Fatalf("new snapshot must see the new generation")
	}
}

func TestJoinAutoDetectsSharedKeys(t *testing.T) {
	store := New()
	store.Replace([]domain.DatasetRecord{
		rec("rainfall", "punjab", 2019, map[string]float64{"rainfall": 580}),
		rec("rainfall", "punjab", 2020, map[string]float64{"rainfall": 600}),
		rec("crop_production", "punjab", 2020, map[string]float64{"production": 100}),
	})

	joined, err := store.Snapshot().Join([]string{"rainfall", "crop_production"}, nil)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if len(joined) != 1 {
		t.Fatalf("joined rows = %d, want 1 (inner join)", len(joined))
	}
	row := joined[0]
	if row.Dataset != "rainfall+crop_production" {
		t.Fatalf("dataset = %s", row.Dataset)
	}
	if row.Measures["rainfall"] != 600 || row.Measures["production"] != 100 {
		t.Fatalf("measures = %v", row.Measures)
	}
}

func TestJoinMeasureNameCollision(t *testing.T) {
	store := New()
	store.Replace([]domain.DatasetRecord{
		rec("a", "punjab", 2020, map[string]float64{"value": 1}),
		rec("b", "punjab", 2020, map[string]float64{"value": 2}),
	})

	joined, err := store.Snapshot().Join([]string{"a", "b"}, nil)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if joined[0].Measures["value"] != 1 || joined[0].Measures["b.value"] != 2 {
		t.Fatalf("measures = %v, want collision prefixed", joined[0].Measures)
	}
}

func TestJoinAmbiguous(t *testing.T) {
	store := New()
	store.Replace([]domain.DatasetRecord{
		rec("rainfall", "punjab", 2020, map[string]float64{"rainfall": 600}),
		rec("rainfall", "punjab", 2020, map[string]float64{"rainfall": 610}),
		rec("crop_production", "punjab", 2020, map[string]float64{"production": 100}),
	})

	_, err := store.Snapshot().Join([]string{"rainfall", "crop_production"}, nil)
	if !domain.IsKind(err, domain.ErrAmbiguousJoin) {
		t.Fatalf("error = %v, want ErrAmbiguousJoin", err)
	}
}

func TestJoinNoSharedKeys(t *testing.T) {
	store := New()
	store.Replace([]domain.DatasetRecord{
		{Dataset: "a", Dimensions: domain.Dimensions{{Key: "region", Value: "north"}}, Measures: map[string]float64{"x": 1}},
		{Dataset: "b", Dimensions: domain.Dimensions{{Key: "zone", Value: "south"}}, Measures: map[string]float64{"y": 2}},
	})

	_, err := store.Snapshot().Join([]string{"a", "b"}, nil)
	if !domain.IsKind(err, domain.ErrJoinKeyMismatch) {
		t.Fatalf("error = %v, want ErrJoinKeyMismatch", err)
	}
}

func TestJoinUnknownDataset(t *testing.T) {
	store := New()
	store.Replace([]domain.DatasetRecord{
		rec("rainfall", "punjab", 2020, map[string]float64{"rainfall": 600}),
	})

	_, err := store.Snapshot().Join([]string{"rainfall", "missing"}, nil)
	if !domain.IsKind(err, domain.ErrDatasetNotFound) {
		t.Fatalf("error = %v, want ErrDatasetNotFound", err)
	}
}

func TestAggregateMeanDeterministicOrder(t *testing.T) {
	store := New()
	records := []domain.DatasetRecord{
		rec("rainfall", "punjab", 2019, map[string]float64{"rainfall": 580}),
		rec("rainfall", "punjab", 2020, map[string]float64{"rainfall": 620}),
		rec("rainfall", "haryana", 2020, map[string]float64{"rainfall": 500}),
	}
	store.Replace(records)

	out, err := store.Snapshot().Aggregate(records, []string{domain.DimensionState}, domain.AggMean)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("groups = %d, want 2", len(out))
	}
	if s, _ := out[0].Dimensions.Get(domain.DimensionState); s != "haryana" {
		t.Fatalf("first group = %s, want haryana (sorted)", s)
	}
	if out[1].Measures["rainfall"] != 600 {
		t.Fatalf("punjab mean = %f, want 600", out[1].Measures["rainfall"])
	}
}

func TestAggregateSumAndCount(t *testing.T) {
	store := New()
	records := []domain.DatasetRecord{
		rec("rainfall", "punjab", 2019, map[string]float64{"rainfall": 580}),
		rec("rainfall", "punjab", 2020, map[string]float64{"rainfall": 620}),
	}
	store.Replace(records)
	snap := store.Snapshot()

	sums, err := snap.Aggregate(records, []string{domain.DimensionState}, domain.AggSum)
	if err != nil {
		t.Fatalf("Aggregate(sum) error = %v", err)
	}
	if sums[0].Measures["rainfall"] != 1200 {
		t.Fatalf("sum = %f, want 1200", sums[0].Measures["rainfall"])
	}

	counts, err := snap.Aggregate(records, []string{domain.DimensionState}, domain.AggCount)
	if err != nil {
		t.Fatalf("Aggregate(count) error = %v", err)
	}
	if counts[0].Measures["rainfall"] != 2 {
		t.Fatalf("count = %f, want 2", counts[0].Measures["rainfall"])
	}
}

func TestAggregateUnknownFunc(t *testing.T) {
	store := New()
	_, err := store.Snapshot().Aggregate(nil, []string{domain.DimensionState}, domain.AggFunc("median"))
	if err == nil {
		t.Fatalf("expected error for unknown aggregation")
	}
}

func TestCorrelateBelowMinimumSample(t *testing.T) {
	store := New()
	a := []domain.DatasetRecord{
		rec("rainfall", "punjab", 2019, map[string]float64{"rainfall": 580}),
		rec("rainfall", "punjab", 2020, map[string]float64{"rainfall": 620}),
	}
	b := []domain.DatasetRecord{
		rec("crop_production", "punjab", 2019, map[string]float64{"production": 90}),
		rec("crop_production", "punjab", 2020, map[string]float64{"production": 110}),
	}
	store.Replace(append(append([]domain.DatasetRecord{}, a...), b...))

	_, _, err := store.Snapshot().Correlate(
		domain.MeasureSeries{Records: a, Measure: "rainfall"},
		domain.MeasureSeries{Records: b, Measure: "production"},
		nil,
	)
	if !domain.IsKind(err, domain.ErrInsufficientData) {
		t.Fatalf("error = %v, want ErrInsufficientData", err)
	}
}

func TestCorrelatePerfectNegative(t *testing.T) {
	store := New()
	var a, b []domain.DatasetRecord
	for year := 2015; year <= 2020; year++ {
		x := float64(year - 2014)
		a = append(a, rec("x", "punjab", year, map[string]float64{"x": x}))
		b = append(b, rec("y", "punjab", year, map[string]float64{"y": -2 * x}))
	}
	store.Replace(append(append([]domain.DatasetRecord{}, a...), b...))

	stat, pairs, err := store.Snapshot().Correlate(
		domain.MeasureSeries{Records: a, Measure: "x"},
		domain.MeasureSeries{Records: b, Measure: "y"},
		[]string{domain.DimensionState, domain.DimensionYear},
	)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if stat.Kind != domain.StatCorrelation || stat.SampleSize != 6 {
		t.Fatalf("stat = %+v", stat)
	}
	if stat.Value > -0.999 {
		t.Fatalf("coefficient = %f, want ~-1", stat.Value)
	}
	if len(pairs) != 6 {
		t.Fatalf("pairs = %d, want 6", len(pairs))
	}
}

func TestCorrelateConstantSeriesIsZero(t *testing.T) {
	store := New()
	var a, b []domain.DatasetRecord
	for year := 2015; year <= 2020; year++ {
		a = append(a, rec("x", "punjab", year, map[string]float64{"x": 5}))
		b = append(b, rec("y", "punjab", year, map[string]float64{"y": float64(year)}))
	}
	store.Replace(append(append([]domain.DatasetRecord{}, a...), b...))

	stat, _, err := store.Snapshot().Correlate(
		domain.MeasureSeries{Records: a, Measure: "x"},
		domain.MeasureSeries{Records: b, Measure: "y"},
		nil,
	)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if stat.Value != 0 {
		t.Fatalf("coefficient = %f, want 0 for zero variance", stat.Value)
	}
}

func TestAlignTimeseriesGapsAndAveraging(t *testing.T) {
	store := New()
	records := []domain.DatasetRecord{
		rec("rainfall", "punjab", 2018, map[string]float64{"rainfall": 600}),
		rec("rainfall", "haryana", 2018, map[string]float64{"rainfall": 500}),
		rec("rainfall", "punjab", 2020, map[string]float64{"rainfall": 700}),
	}
	store.Replace(records)

	points := store.Snapshot().AlignTimeseries(records, "rainfall", domain.YearRange{From: 2018, To: 2020})
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}
	if points[0].Value != 550 {
		t.Fatalf("2018 = %f, want 550 (averaged)", points[0].Value)
	}
	if !points[1].Gap {
		t.Fatalf("2019 must be a gap")
	}
	if points[2].Value != 700 {
		t.Fatalf("2020 = %f", points[2].Value)
	}
}

func TestAlignTimeseriesZeroRangeUsesObserved(t *testing.T) {
	store := New()
	records := []domain.DatasetRecord{
		rec("rainfall", "punjab", 2019, map[string]float64{"rainfall": 580}),
		rec("rainfall", "punjab", 2021, map[string]float64{"rainfall": 620}),
	}
	store.Replace(records)

	points := store.Snapshot().AlignTimeseries(records, "rainfall", domain.YearRange{})
	if len(points) != 3 {
		t.Fatalf("points = %d, want observed span 2019-2021", len(points))
	}
	if !points[1].Gap {
		t.Fatalf("2020 must be a gap")
	}
}
