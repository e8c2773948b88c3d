package model

// RunMode selects how the solver treats the source.
type RunMode string

const (
	// ModeFixedSource transports particles from an external source.
	ModeFixedSource RunMode = "fixed source"
	// ModeEigenvalue runs a criticality calculation.
	ModeEigenvalue RunMode = "eigenvalue"
)

// Valid reports whether the run mode is known.
func (m RunMode) Valid() bool {
	return m == ModeFixedSource || m == ModeEigenvalue
}

// AngleIsotropic is the only angular distribution the templates support.
const AngleIsotropic = "isotropic"

// Source is a point source with a discrete energy distribution.
// Energies are in eV; 14e6 is the D-T fusion neutron.
type Source struct {
	Space         [3]float64 `json:"space"`
	Angle         string     `json:"angle"`
	Energies      []float64  `json:"energies"`
	Probabilities []float64  `json:"probabilities"`
}

// RunSettings controls the Monte Carlo run.
type RunSettings struct {
	Batches   int     `json:"batches"`
	Particles int     `json:"particles"`
	Inactive  int     `json:"inactive"`
	Mode      RunMode `json:"mode"`
	Source    Source  `json:"source"`
}

// TallyRequest asks the solver to score reactions in one region.
type TallyRequest struct {
	// Name identifies the tally in the solver artifact, e.g. "TBR".
	Name string `json:"name"`

	// Region is the name of the region the tally is filtered on.
	Region string `json:"region"`

	// Scores are solver reaction names such as "(n,Xt)".
	Scores []string `json:"scores"`

	// Nuclides requests a per-nuclide breakdown when non-empty.
	Nuclides []string `json:"nuclides,omitempty"`
}

// PerNuclide reports whether the tally is broken down by nuclide.
func (t TallyRequest) PerNuclide() bool {
	return len(t.Nuclides) > 0
}
