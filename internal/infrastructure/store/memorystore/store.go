// Package memorystore holds harmonized dataset records in immutable
// generations and implements the structured operations the fusion engine
// composes: filter, join, aggregate, correlate and time-series alignment.
package memorystore

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
	"github.com/agrisense/agrisense-engine/internal/core/ports"
)

// MinAlignedSamples is the smallest aligned sample a correlation may be
// computed over. Below it the operation fails instead of returning a
// statistically meaningless value.
const MinAlignedSamples = 5

type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

func New() *Store {
	s := &Store{}
	s.current.Store(&snapshot{datasets: map[string][]domain.DatasetRecord{}})
	return s
}

// Replace publishes a new generation holding exactly the given records.
// Snapshots handed out earlier keep serving the generation they started with.
func (s *Store) Replace(records []domain.DatasetRecord) {
	datasets := make(map[string][]domain.DatasetRecord)
	order := make([]string, 0, 8)
	for _, rec := range records {
		if _, ok := datasets[rec.Dataset]; !ok {
			order = append(order, rec.Dataset)
		}
		datasets[rec.Dataset] = append(datasets[rec.Dataset], rec)
	}
	sort.Strings(order)

	s.mu.Lock()
	s.current.Store(&snapshot{datasets: datasets, order: order})
	s.mu.Unlock()
}

func (s *Store) Snapshot() ports.StoreSnapshot {
	return s.current.Load()
}

type snapshot struct {
	datasets map[string][]domain.DatasetRecord
	order    []string
}

func (sn *snapshot) Has(dataset string) bool {
	_, ok := sn.datasets[dataset]
	return ok
}

func (sn *snapshot) Datasets() []domain.DatasetInfo {
	out := make([]domain.DatasetInfo, 0, len(sn.order))
	for _, name := range sn.order {
		records := sn.datasets[name]
		info := domain.DatasetInfo{Name: name, Rows: len(records)}
		if len(records) > 0 {
			info.DimensionKeys = records[0].Dimensions.Keys()
			info.Measures = records[0].MeasureNames()
		}
		out = append(out, info)
	}
	return out
}

func (sn *snapshot) Filter(dataset string, keep func(domain.DatasetRecord) bool) ([]domain.DatasetRecord, error) {
	records, ok := sn.datasets[dataset]
	if !ok {
		return nil, domain.WrapError(domain.ErrDatasetNotFound, "filter", errNamed(dataset))
	}
	out := make([]domain.DatasetRecord, 0, len(records))
	for _, rec := range records {
		if keep == nil || keep(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}
