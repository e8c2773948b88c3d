package model

import (
	"errors"
	"testing"
)

func validRunConfig() *RunConfig {
	return &RunConfig{
		Materials: MaterialSet{
			{
				Name:    "steel",
				Density: Density{Value: 7.75, Unit: "g/cm3"},
				Constituents: []Constituent{
					{Name: "Fe", Kind: KindElement, Fraction: 0.95, FractionType: FractionWeight},
					{Name: "C", Kind: KindElement, Fraction: 0.05, FractionType: FractionWeight},
				},
			},
		},
		Geometry: GeometrySpec{
			Regions: []Region{
				{Name: "vessel", Material: VoidMaterial, OuterRadius: 500},
				{Name: "first_wall", Material: "steel", OuterRadius: 510},
			},
			Boundary: BoundaryVacuum,
		},
		Settings: RunSettings{
			Batches:   10,
			Particles: 500,
			Mode:      ModeFixedSource,
			Source:    Source{Angle: AngleIsotropic, Energies: []float64{14e6}, Probabilities: []float64{1}},
		},
		Tallies: []TallyRequest{{Name: "TBR", Region: "first_wall", Scores: []string{"(n,Xt)"}}},
	}
}

func TestRunConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *RunConfig)
	}{
		{name: "unknown region material", mutate: func(c *RunConfig) { c.Geometry.Regions[1].Material = "lead" }},
		{name: "radii not increasing", mutate: func(c *RunConfig) { c.Geometry.Regions[1].OuterRadius = 400 }},
		{name: "non-positive first radius", mutate: func(c *RunConfig) { c.Geometry.Regions[0].OuterRadius = 0 }},
		{name: "tally on unknown region", mutate: func(c *RunConfig) { c.Tallies[0].Region = "blanket" }},
		{name: "duplicate tally", mutate: func(c *RunConfig) { c.Tallies = append(c.Tallies, c.Tallies[0]) }},
		{name: "zero batches", mutate: func(c *RunConfig) { c.Settings.Batches = 0 }},
		{name: "zero particles", mutate: func(c *RunConfig) { c.Settings.Particles = 0 }},
		{name: "inactive not below batches", mutate: func(c *RunConfig) { c.Settings.Inactive = 10 }},
		{name: "unknown run mode", mutate: func(c *RunConfig) { c.Settings.Mode = "burnup" }},
		{name: "unknown boundary", mutate: func(c *RunConfig) { c.Geometry.Boundary = "periodic" }},
		{name: "energy probability mismatch", mutate: func(c *RunConfig) { c.Settings.Source.Probabilities = nil }},
		{name: "non-positive density", mutate: func(c *RunConfig) { c.Materials[0].Density.Value = 0 }},
		{name: "no regions", mutate: func(c *RunConfig) { c.Geometry.Regions = nil }},
	}

	t.Run("accepts a consistent configuration", func(t *testing.T) {
		t.Parallel()
		if err := validRunConfig().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			t.Parallel()
			c := validRunConfig()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, ErrInconsistentConfig) {
				t.Errorf("got %v, expected ErrInconsistentConfig", err)
			}
		})
	}
}

func TestScanState_String(t *testing.T) {
	t.Parallel()

	for state, want := range stateNames {
		got, err := ParseScanState(want)
		if err != nil || got != state {
			t.Errorf("ParseScanState(%q) = %v, %v", want, got, err)
		}
		if state.String() != want {
			t.Errorf("got %q, expected %q", state.String(), want)
		}
	}
	if ScanState(42).String() != "unknown" {
		t.Error("expected unknown for out-of-range state")
	}
}
