package model

import (
	"errors"
	"fmt"
)

// ErrInconsistentConfig is returned by RunConfig.Validate when the parts of a
// run configuration do not fit together.
var ErrInconsistentConfig = errors.New("inconsistent run configuration")

// RunConfig is a fully concrete solver input for a single scan point.
// It carries no placeholders; every value has been evaluated.
//
// A RunConfig is built per scan point and discarded once the solver has run.
type RunConfig struct {
	Materials MaterialSet    `json:"materials"`
	Geometry  GeometrySpec   `json:"geometry"`
	Settings  RunSettings    `json:"settings"`
	Tallies   []TallyRequest `json:"tallies"`
}

// Tally returns the tally request with the given name.
func (c *RunConfig) Tally(name string) (TallyRequest, bool) {
	for _, t := range c.Tallies {
		if t.Name == name {
			return t, true
		}
	}
	return TallyRequest{}, false
}

// Validate checks cross-references and numeric sanity of the configuration.
// All returned errors wrap ErrInconsistentConfig.
func (c *RunConfig) Validate() error {
	if len(c.Geometry.Regions) == 0 {
		return inconsistent("geometry has no regions")
	}
	if !c.Geometry.Boundary.Valid() {
		return inconsistent("unknown boundary condition %q", c.Geometry.Boundary)
	}

	seenMaterials := make(map[string]struct{}, len(c.Materials))
	for _, m := range c.Materials {
		if _, dup := seenMaterials[m.Name]; dup {
			return inconsistent("duplicate material %q", m.Name)
		}
		seenMaterials[m.Name] = struct{}{}
		if m.Density.Value <= 0 {
			return inconsistent("material %q has non-positive density %g", m.Name, m.Density.Value)
		}
		if len(m.Constituents) == 0 {
			return inconsistent("material %q has no constituents", m.Name)
		}
	}

	prev := 0.0
	seenRegions := make(map[string]struct{}, len(c.Geometry.Regions))
	for _, r := range c.Geometry.Regions {
		if _, dup := seenRegions[r.Name]; dup {
			return inconsistent("duplicate region %q", r.Name)
		}
		seenRegions[r.Name] = struct{}{}
		if !r.IsVoid() {
			if _, ok := seenMaterials[r.Material]; !ok {
				return inconsistent("region %q references unknown material %q", r.Name, r.Material)
			}
		}
		if r.OuterRadius <= prev {
			return inconsistent("region %q outer radius %g must exceed %g", r.Name, r.OuterRadius, prev)
		}
		prev = r.OuterRadius
	}

	s := c.Settings
	if s.Batches <= 0 {
		return inconsistent("batches must be positive, got %d", s.Batches)
	}
	if s.Particles <= 0 {
		return inconsistent("particles must be positive, got %d", s.Particles)
	}
	if s.Inactive < 0 || s.Inactive >= s.Batches {
		return inconsistent("inactive batches %d must be in [0, %d)", s.Inactive, s.Batches)
	}
	if !s.Mode.Valid() {
		return inconsistent("unknown run mode %q", s.Mode)
	}
	if len(s.Source.Energies) != len(s.Source.Probabilities) {
		return inconsistent("source has %d energies but %d probabilities",
			len(s.Source.Energies), len(s.Source.Probabilities))
	}

	seenTallies := make(map[string]struct{}, len(c.Tallies))
	for _, t := range c.Tallies {
		if _, dup := seenTallies[t.Name]; dup {
			return inconsistent("duplicate tally %q", t.Name)
		}
		seenTallies[t.Name] = struct{}{}
		if _, ok := seenRegions[t.Region]; !ok {
			return inconsistent("tally %q targets unknown region %q", t.Name, t.Region)
		}
		if len(t.Scores) == 0 {
			return inconsistent("tally %q has no scores", t.Name)
		}
	}
	return nil
}

func inconsistent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistentConfig, fmt.Sprintf(format, args...))
}
