package builder

import "github.com/hashicorp/hcl/v2"

// The structs below mirror the HCL template layout for gohcl.DecodeBody.
// Attributes that may reference parameters are kept as hcl.Expression and
// evaluated per scan point; everything else is decoded to plain Go values,
// so a var reference there is rejected at load time.

type templateFile struct {
	Parameters []*parameterBlock `hcl:"parameter,block"`
	Materials  []*materialBlock  `hcl:"material,block"`
	Geometry   *geometryBlock    `hcl:"geometry,block"`
	Settings   *settingsBlock    `hcl:"settings,block"`
	Tallies    []*tallyBlock     `hcl:"tally,block"`
}

type parameterBlock struct {
	Name        string   `hcl:"name,label"`
	Min         *float64 `hcl:"min,optional"`
	Max         *float64 `hcl:"max,optional"`
	Description string   `hcl:"description,optional"`
}

type materialBlock struct {
	Name     string              `hcl:"name,label"`
	Density  *densityBlock       `hcl:"density,block"`
	Elements []*constituentBlock `hcl:"element,block"`
	Nuclides []*constituentBlock `hcl:"nuclide,block"`
}

type densityBlock struct {
	Value hcl.Expression `hcl:"value"`
	Unit  string         `hcl:"unit"`
}

type constituentBlock struct {
	Name             string         `hcl:"name,label"`
	Fraction         hcl.Expression `hcl:"fraction"`
	Type             string         `hcl:"type,optional"`
	Enrichment       hcl.Expression `hcl:"enrichment,optional"`
	EnrichmentTarget string         `hcl:"enrichment_target,optional"`
	EnrichmentType   string         `hcl:"enrichment_type,optional"`
}

type geometryBlock struct {
	Boundary string         `hcl:"boundary,optional"`
	Regions  []*regionBlock `hcl:"region,block"`
}

type regionBlock struct {
	Name        string         `hcl:"name,label"`
	Material    string         `hcl:"material"`
	OuterRadius hcl.Expression `hcl:"outer_radius"`
}

type settingsBlock struct {
	Batches   int          `hcl:"batches"`
	Particles int          `hcl:"particles"`
	Inactive  int          `hcl:"inactive,optional"`
	RunMode   string       `hcl:"run_mode,optional"`
	Source    *sourceBlock `hcl:"source,block"`
}

type sourceBlock struct {
	Point         []float64 `hcl:"point,optional"`
	Angle         string    `hcl:"angle,optional"`
	Energies      []float64 `hcl:"energies"`
	Probabilities []float64 `hcl:"probabilities,optional"`
}

type tallyBlock struct {
	Name     string   `hcl:"name,label"`
	Region   string   `hcl:"region"`
	Scores   []string `hcl:"scores"`
	Nuclides []string `hcl:"nuclides,optional"`
}
