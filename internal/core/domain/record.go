package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Dimension is one category key/value pair of a harmonized row.
type Dimension struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Dimensions is an ordered mapping of category keys to scalar values.
// Keys are unique; order is the ingestion order and is preserved.
type Dimensions []Dimension

func (d Dimensions) Get(key string) (string, bool) {
	for _, dim := range d {
		if dim.Key == key {
			return dim.Value, true
		}
	}
	return "", false
}

func (d Dimensions) Keys() []string {
	keys := make([]string, 0, len(d))
	for _, dim := range d {
		keys = append(keys, dim.Key)
	}
	return keys
}

// Year parses the "year" dimension if present.
func (d Dimensions) Year() (int, bool) {
	raw, ok := d.Get(DimensionYear)
	if !ok {
		return 0, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return year, true
}

// Well-known dimension keys shared across harmonized datasets. These are the
// join surface.
const (
	DimensionState = "state"
	DimensionYear  = "year"
	DimensionCrop  = "crop"
)

// DatasetRecord is one harmonized row of a named dataset.
type DatasetRecord struct {
	Dataset    string             `json:"dataset"`
	Dimensions Dimensions         `json:"dimensions"`
	Measures   map[string]float64 `json:"measures"`
}

// KeyTuple renders the record's values for the given dimension keys into a
// single comparable string. The second return is false when any key is absent.
func (r DatasetRecord) KeyTuple(keys []string) (string, bool) {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value, ok := r.Dimensions.Get(key)
		if !ok {
			return "", false
		}
		parts = append(parts, value)
	}
	return strings.Join(parts, "\x1f"), true
}

// MeasureNames returns the record's measure names in deterministic order.
func (r DatasetRecord) MeasureNames() []string {
	names := make([]string, 0, len(r.Measures))
	for name := range r.Measures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DatasetInfo describes one registered dataset for listing endpoints.
type DatasetInfo struct {
	Name          string   `json:"name"`
	Rows          int      `json:"rows"`
	DimensionKeys []string `json:"dimension_keys"`
	Measures      []string `json:"measures"`
}
