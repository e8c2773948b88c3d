package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidAssignment is returned when a "name=value" parameter assignment
// cannot be parsed.
var ErrInvalidAssignment = errors.New("invalid parameter assignment: expected name=value")

// ScanParameters is the immutable set of named numeric inputs for one solver run.
// Typical names are enrichment_fraction, inner_radius and outer_radius.
//
// Design decision: The underlying map is unexported and copied on the way in
// and on the way out. A ScanParameters value can therefore be shared between
// goroutines of a batch without any locking.
type ScanParameters struct {
	values map[string]float64
}

// NewScanParameters creates ScanParameters from a map. The map is copied, so
// later changes by the caller do not affect the returned value.
func NewScanParameters(values map[string]float64) ScanParameters {
	return ScanParameters{values: maps.Clone(values)}
}

// Get returns the value of a parameter and whether it is present.
func (p ScanParameters) Get(name string) (float64, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Has reports whether the parameter is present.
func (p ScanParameters) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Len returns the number of parameters.
func (p ScanParameters) Len() int {
	return len(p.values)
}

// Names returns the parameter names in sorted order.
func (p ScanParameters) Names() []string {
	return slices.Sorted(maps.Keys(p.values))
}

// Values returns a copy of the underlying map.
func (p ScanParameters) Values() map[string]float64 {
	if p.values == nil {
		return map[string]float64{}
	}
	return maps.Clone(p.values)
}

// With returns a new ScanParameters with name set to value.
// The receiver is left unchanged.
func (p ScanParameters) With(name string, value float64) ScanParameters {
	values := p.Values()
	values[name] = value
	return ScanParameters{values: values}
}

// Key returns a canonical representation used to identify a parameter set,
// e.g. "enrichment_fraction=0.5,inner_radius=50,outer_radius=96.723".
// Two ScanParameters with the same contents always produce the same key.
func (p ScanParameters) Key() string {
	names := p.Names()
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + FormatFloat(p.values[name])
	}
	return strings.Join(parts, ",")
}

// String implements fmt.Stringer.
func (p ScanParameters) String() string {
	return "{" + p.Key() + "}"
}

// MarshalJSON encodes the parameters as a JSON object.
func (p ScanParameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Values())
}

// UnmarshalJSON decodes a JSON object into the parameters.
func (p *ScanParameters) UnmarshalJSON(data []byte) error {
	var values map[string]float64
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	p.values = values
	return nil
}

// ParseAssignment parses a "name=value" string as given on the command line.
func ParseAssignment(s string) (string, float64, error) {
	name, raw, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	raw = strings.TrimSpace(raw)
	if !ok || name == "" || raw == "" {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidAssignment, s)
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %v", ErrInvalidAssignment, s, err)
	}
	return name, value, nil
}

// FormatFloat formats a float with the shortest representation that
// round-trips, e.g. 1.05 rather than 1.050000.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
