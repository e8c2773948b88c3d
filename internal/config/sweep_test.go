package config

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseSweep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []float64
		wantErr bool
	}{
		{name: "linear range includes both ends", input: "enrichment_fraction=0.1:0.9:5", want: []float64{0.1, 0.3, 0.5, 0.7, 0.9}},
		{name: "single step yields the start", input: "outer_radius=100:200:1", want: []float64{100}},
		{name: "descending range", input: "outer_radius=120:100:3", want: []float64{120, 110, 100}},
		{name: "value list keeps order", input: "outer_radius=100, 90,110", want: []float64{100, 90, 110}},
		{name: "single value", input: "inner_radius=50", want: []float64{50}},
		{name: "missing equals sign", input: "outer_radius", wantErr: true},
		{name: "missing name", input: "=1,2", wantErr: true},
		{name: "two part range", input: "outer_radius=1:2", wantErr: true},
		{name: "zero steps", input: "outer_radius=1:2:0", wantErr: true},
		{name: "fractional steps", input: "outer_radius=1:2:2.5", wantErr: true},
		{name: "non-numeric value", input: "outer_radius=1,big", wantErr: true},
		{name: "infinite value", input: "outer_radius=Inf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sw, err := ParseSweep(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSweep) {
					t.Errorf("got %v, expected ErrInvalidSweep", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSweep(%q) error = %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, sw.Points(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("points mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExpandSweeps(t *testing.T) {
	t.Parallel()

	t.Run("Cartesian product with the first sweep varying slowest", func(t *testing.T) {
		t.Parallel()
		points, err := ExpandSweeps(
			map[string]float64{"inner_radius": 50},
			[]Sweep{
				{Name: "enrichment_fraction", Values: []float64{0.3, 0.6}},
				{Name: "outer_radius", Start: 90, Stop: 110, Steps: 3},
			},
		)
		if err != nil {
			t.Fatalf("ExpandSweeps() error = %v", err)
		}
		want := []string{
			"enrichment_fraction=0.3,inner_radius=50,outer_radius=90",
			"enrichment_fraction=0.3,inner_radius=50,outer_radius=100",
			"enrichment_fraction=0.3,inner_radius=50,outer_radius=110",
			"enrichment_fraction=0.6,inner_radius=50,outer_radius=90",
			"enrichment_fraction=0.6,inner_radius=50,outer_radius=100",
			"enrichment_fraction=0.6,inner_radius=50,outer_radius=110",
		}
		if diff := cmp.Diff(want, keys(points)); diff != "" {
			t.Errorf("points mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no sweeps yields the fixed point", func(t *testing.T) {
		t.Parallel()
		points, err := ExpandSweeps(map[string]float64{"inner_radius": 50}, nil)
		if err != nil || len(points) != 1 || points[0].Key() != "inner_radius=50" {
			t.Errorf("got %v, %v", keys(points), err)
		}
	})

	t.Run("nothing at all yields no points", func(t *testing.T) {
		t.Parallel()
		points, err := ExpandSweeps(nil, nil)
		if err != nil || points != nil {
			t.Errorf("got %v, %v", points, err)
		}
	})

	t.Run("rejects a parameter swept twice", func(t *testing.T) {
		t.Parallel()
		sweeps := []Sweep{{Name: "outer_radius", Values: []float64{1}}, {Name: "outer_radius", Values: []float64{2}}}
		if _, err := ExpandSweeps(nil, sweeps); !errors.Is(err, ErrInvalidSweep) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("rejects a parameter both fixed and swept", func(t *testing.T) {
		t.Parallel()
		_, err := ExpandSweeps(map[string]float64{"outer_radius": 100}, []Sweep{{Name: "outer_radius", Values: []float64{1}}})
		if !errors.Is(err, ErrInvalidSweep) {
			t.Errorf("got %v", err)
		}
	})
}
