package memorystore

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
)

func errNamed(name string) error {
	return errors.New(name)
}

// Join performs an inner join across the datasets on the given dimension
// keys; with nil keys the shared key set is auto-detected. A key tuple that
// repeats within one dataset is an ambiguous many-to-many join and is never
// silently resolved.
func (sn *snapshot) Join(datasets []string, keys []string) ([]domain.DatasetRecord, error) {
	if len(datasets) < 2 {
		return nil, domain.WrapError(domain.ErrJoinKeyMismatch, "join", errors.New("need at least two datasets"))
	}
	groups := make([][]domain.DatasetRecord, 0, len(datasets))
	for _, name := range datasets {
		records, ok := sn.datasets[name]
		if !ok {
			return nil, domain.WrapError(domain.ErrDatasetNotFound, "join", errNamed(name))
		}
		groups = append(groups, records)
	}

	if len(keys) == 0 {
		keys = sharedDimensionKeys(groups)
	}
	if len(keys) == 0 {
		return nil, domain.WrapError(domain.ErrJoinKeyMismatch, "join",
			fmt.Errorf("no common dimension keys across %s", strings.Join(datasets, ", ")))
	}

	// One map per dataset, keyed by the join tuple.
	indexed := make([]map[string]domain.DatasetRecord, 0, len(groups))
	for gi, records := range groups {
		byTuple := make(map[string]domain.DatasetRecord, len(records))
		for _, rec := range records {
			tuple, ok := rec.KeyTuple(keys)
			if !ok {
				continue
			}
			if _, dup := byTuple[tuple]; dup {
				return nil, domain.WrapError(domain.ErrAmbiguousJoin, "join",
					fmt.Errorf("dataset %s has multiple rows for key %q", datasets[gi], strings.ReplaceAll(tuple, "\x1f", "/")))
			}
			byTuple[tuple] = rec
		}
		if len(byTuple) == 0 {
			return nil, domain.WrapError(domain.ErrJoinKeyMismatch, "join",
				fmt.Errorf("dataset %s has no rows carrying keys %v", datasets[gi], keys))
		}
		indexed = append(indexed, byTuple)
	}

	tuples := make([]string, 0, len(indexed[0]))
	for tuple := range indexed[0] {
		present := true
		for _, other := range indexed[1:] {
			if _, ok := other[tuple]; !ok {
				present = false
				break
			}
		}
		if present {
			tuples = append(tuples, tuple)
		}
	}
	sort.Strings(tuples)

	joinedName := strings.Join(datasets, "+")
	out := make([]domain.DatasetRecord, 0, len(tuples))
	for _, tuple := range tuples {
		values := strings.Split(tuple, "\x1f")
		dims := make(domain.Dimensions, 0, len(keys))
		for ki, key := range keys {
			dims = append(dims, domain.Dimension{Key: key, Value: values[ki]})
		}
		measures := make(map[string]float64)
		for gi, byTuple := range indexed {
			rec := byTuple[tuple]
			for name, value := range rec.Measures {
				if _, taken := measures[name]; taken {
					name = datasets[gi] + "." + name
				}
				measures[name] = value
			}
		}
		out = append(out, domain.DatasetRecord{Dataset: joinedName, Dimensions: dims, Measures: measures})
	}
	return out, nil
}

// Aggregate groups records by the dimension keys and reduces every measure
// with fn. Output ordering is deterministic by group key.
func (sn *snapshot) Aggregate(records []domain.DatasetRecord, groupBy []string, fn domain.AggFunc) ([]domain.DatasetRecord, error) {
	switch fn {
	case domain.AggSum, domain.AggMean, domain.AggCount:
	default:
		return nil, fmt.Errorf("aggregate: unknown function %q", fn)
	}
	if len(groupBy) == 0 {
		return nil, fmt.Errorf("aggregate: no group keys")
	}

	type bucket struct {
		dims   domain.Dimensions
		sums   map[string]float64
		counts map[string]int
	}
	buckets := make(map[string]*bucket)
	tuples := make([]string, 0, 16)

	for _, rec := range records {
		tuple, ok := rec.KeyTuple(groupBy)
		if !ok {
			continue
		}
		b, exists := buckets[tuple]
		if !exists {
			dims := make(domain.Dimensions, 0, len(groupBy))
			for _, key := range groupBy {
				value, _ := rec.Dimensions.Get(key)
				dims = append(dims, domain.Dimension{Key: key, Value: value})
			}
			b = &bucket{dims: dims, sums: map[string]float64{}, counts: map[string]int{}}
			buckets[tuple] = b
			tuples = append(tuples, tuple)
		}
		for name, value := range rec.Measures {
			b.sums[name] += value
			b.counts[name]++
		}
	}
	sort.Strings(tuples)

	dataset := ""
	if len(records) > 0 {
		dataset = records[0].Dataset
	}
	out := make([]domain.DatasetRecord, 0, len(tuples))
	for _, tuple := range tuples {
		b := buckets[tuple]
		measures := make(map[string]float64, len(b.sums))
		for name, sum := range b.sums {
			switch fn {
			case domain.AggSum:
				measures[name] = sum
			case domain.AggMean:
				measures[name] = sum / float64(b.counts[name])
			case domain.AggCount:
				measures[name] = float64(b.counts[name])
			}
		}
		out = append(out, domain.DatasetRecord{Dataset: dataset, Dimensions: b.dims, Measures: measures})
	}
	return out, nil
}

// Correlate aligns the two measure series by the dimension keys and computes
// the Pearson coefficient over the aligned pairs.
func (sn *snapshot) Correlate(a, b domain.MeasureSeries, keys []string) (domain.Statistic, []domain.AlignedPair, error) {
	if len(keys) == 0 {
		keys = sharedDimensionKeys([][]domain.DatasetRecord{a.Records, b.Records})
	}
	if len(keys) == 0 {
		return domain.Statistic{}, nil, domain.WrapError(domain.ErrJoinKeyMismatch, "correlate",
			errors.New("no common dimension keys between series"))
	}

	right := make(map[string]float64, len(b.Records))
	for _, rec := range b.Records {
		tuple, ok := rec.KeyTuple(keys)
		if !ok {
			continue
		}
		if value, has := rec.Measures[b.Measure]; has {
			right[tuple] = value
		}
	}

	pairs := make([]domain.AlignedPair, 0, len(a.Records))
	for _, rec := range a.Records {
		tuple, ok := rec.KeyTuple(keys)
		if !ok {
			continue
		}
		x, hasX := rec.Measures[a.Measure]
		y, hasY := right[tuple]
		if !hasX || !hasY {
			continue
		}
		pairs = append(pairs, domain.AlignedPair{Key: strings.ReplaceAll(tuple, "\x1f", "/"), X: x, Y: y})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })

	if len(pairs) < MinAlignedSamples {
		return domain.Statistic{}, pairs, domain.WrapError(domain.ErrInsufficientData, "correlate",
			fmt.Errorf("aligned sample size %d below minimum %d", len(pairs), MinAlignedSamples))
	}

	coeff := pearson(pairs)
	return domain.Statistic{Kind: domain.StatCorrelation, Value: coeff, SampleSize: len(pairs)}, pairs, nil
}

// AlignTimeseries resamples records to yearly periods over the requested
// range. Years inside the range with no observation appear as explicit gaps;
// multiple observations in one year are averaged.
func (sn *snapshot) AlignTimeseries(records []domain.DatasetRecord, measure string, years domain.YearRange) []domain.TimeSeriesPoint {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	minYear, maxYear := 0, 0
	for _, rec := range records {
		year, ok := rec.Dimensions.Year()
		if !ok {
			continue
		}
		value, has := rec.Measures[measure]
		if !has {
			continue
		}
		sums[year] += value
		counts[year]++
		if minYear == 0 || year < minYear {
			minYear = year
		}
		if year > maxYear {
			maxYear = year
		}
	}

	from, to := years.From, years.To
	if years.IsZero() {
		from, to = minYear, maxYear
	}
	if from == 0 || to < from {
		return nil
	}

	out := make([]domain.TimeSeriesPoint, 0, to-from+1)
	for year := from; year <= to; year++ {
		if counts[year] == 0 {
			out = append(out, domain.TimeSeriesPoint{Period: year, Gap: true})
			continue
		}
		out = append(out, domain.TimeSeriesPoint{Period: year, Value: sums[year] / float64(counts[year])})
	}
	return out
}

func sharedDimensionKeys(groups [][]domain.DatasetRecord) []string {
	counts := make(map[string]int)
	order := make([]string, 0, 8)
	for _, records := range groups {
		if len(records) == 0 {
			return nil
		}
		seen := make(map[string]bool)
		for _, key := range records[0].Dimensions.Keys() {
			if seen[key] {
				continue
			}
			seen[key] = true
			if counts[key] == 0 {
				order = append(order, key)
			}
			counts[key]++
		}
	}
	shared := make([]string, 0, len(order))
	for _, key := range order {
		if counts[key] == len(groups) {
			shared = append(shared, key)
		}
	}
	return shared
}

func pearson(pairs []domain.AlignedPair) float64 {
	n := float64(len(pairs))
	var sumX, sumY float64
	for _, p := range pairs {
		sumX += p.X
		sumY += p.Y
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for _, p := range pairs {
		dx, dy := p.X-meanX, p.Y-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	coeff := cov / math.Sqrt(varX*varY)
	// Guard against floating-point drift outside [-1,1].
	return math.Max(-1, math.Min(1, coeff))
}
