package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nao1215/tbrscan/internal/model"
)

// Sweep is one scanned parameter: either an explicit list of values or
// Steps evenly spaced values from Start to Stop inclusive.
type Sweep struct {
	// Name is the parameter name.
	Name string `yaml:"name"`

	// Values lists the scanned values. When set, Start, Stop and Steps are
	// ignored.
	Values []float64 `yaml:"values,omitempty"`

	// Start is the first value of a linear range.
	Start float64 `yaml:"start,omitempty"`

	// Stop is the last value of a linear range.
	Stop float64 `yaml:"stop,omitempty"`

	// Steps is the number of values of a linear range, including both ends.
	Steps int `yaml:"steps,omitempty"`
}

// ParseSweep parses a command line sweep, "name=start:stop:steps" or
// "name=v1,v2,...".
func ParseSweep(s string) (Sweep, error) {
	name, spec, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.TrimSpace(spec) == "" {
		return Sweep{}, fmt.Errorf("%w %q: expected name=start:stop:steps or name=v1,v2,...", ErrInvalidSweep, s)
	}

	if parts := strings.Split(spec, ":"); len(parts) > 1 {
		if len(parts) != 3 {
			return Sweep{}, fmt.Errorf("%w %q: a range needs start:stop:steps", ErrInvalidSweep, s)
		}
		start, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		stop, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		steps, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err1 != nil || err2 != nil || err3 != nil {
			return Sweep{}, fmt.Errorf("%w %q: range bounds must be numbers and steps an integer", ErrInvalidSweep, s)
		}
		sw := Sweep{Name: name, Start: start, Stop: stop, Steps: steps}
		return sw, sw.Validate()
	}

	sw := Sweep{Name: name}
	for _, field := range strings.Split(spec, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return Sweep{}, fmt.Errorf("%w %q: %q is not a number", ErrInvalidSweep, s, field)
		}
		sw.Values = append(sw.Values, v)
	}
	return sw, sw.Validate()
}

// Validate reports whether the sweep yields at least one finite value.
func (s Sweep) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: missing parameter name", ErrInvalidSweep)
	}
	if len(s.Values) == 0 && s.Steps < 1 {
		return fmt.Errorf("%w %s: needs values or at least one step", ErrInvalidSweep, s.Name)
	}
	for _, v := range s.Points() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w %s: values must be finite", ErrInvalidSweep, s.Name)
		}
	}
	return nil
}

// Points returns the scanned values in order.
func (s Sweep) Points() []float64 {
	if len(s.Values) > 0 {
		return append([]float64(nil), s.Values...)
	}
	if s.Steps < 1 {
		return nil
	}
	if s.Steps == 1 {
		return []float64{s.Start}
	}
	values := make([]float64, s.Steps)
	step := (s.Stop - s.Start) / float64(s.Steps-1)
	for i := range values {
		values[i] = s.Start + float64(i)*step
	}
	values[len(values)-1] = s.Stop
	return values
}

// ExpandSweeps returns the Cartesian product of the sweeps, each point
// completed with the fixed parameters. The first sweep varies slowest.
// Without sweeps the fixed parameters form the only point, or there is no
// point at all when they are empty too.
func ExpandSweeps(fixed map[string]float64, sweeps []Sweep) ([]model.ScanParameters, error) {
	seen := map[string]bool{}
	for _, s := range sweeps {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("%w %s: swept more than once", ErrInvalidSweep, s.Name)
		}
		if _, ok := fixed[s.Name]; ok {
			return nil, fmt.Errorf("%w %s: both fixed and swept", ErrInvalidSweep, s.Name)
		}
		seen[s.Name] = true
	}

	if len(sweeps) == 0 {
		if len(fixed) == 0 {
			return nil, nil
		}
		return []model.ScanParameters{model.NewScanParameters(fixed)}, nil
	}

	points := []model.ScanParameters{model.NewScanParameters(fixed)}
	for _, s := range sweeps {
		values := s.Points()
		next := make([]model.ScanParameters, 0, len(points)*len(values))
		for _, p := range points {
			for _, v := range values {
				next = append(next, p.With(s.Name, v))
			}
		}
		points = next
	}
	return points, nil
}
