package model

// ConstituentKind distinguishes natural elements from single nuclides.
type ConstituentKind string

const (
	// KindElement is a natural element such as "Pb" or "Li".
	KindElement ConstituentKind = "element"
	// KindNuclide is a single nuclide such as "Li6".
	KindNuclide ConstituentKind = "nuclide"
)

// FractionType tells the solver how to interpret a constituent fraction.
type FractionType string

const (
	// FractionAtom is an atom fraction ("ao").
	FractionAtom FractionType = "ao"
	// FractionWeight is a weight fraction ("wo").
	FractionWeight FractionType = "wo"
)

// Valid reports whether the fraction type is known to the solver.
func (f FractionType) Valid() bool {
	return f == FractionAtom || f == FractionWeight
}

// Density is a material density together with its unit, e.g.
// {7.75, "g/cm3"} or {3.2720171e-2, "atom/b-cm"}.
type Density struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Enrichment describes isotopic enrichment of an element. The breeder of a
// tritium blanket is typically lithium enriched in Li6.
type Enrichment struct {
	// Percent is the enrichment of Target in percent (0 to 100).
	Percent float64 `json:"percent"`

	// Target is the enriched nuclide, e.g. "Li6".
	Target string `json:"target"`

	// Type is the fraction type the enrichment is expressed in.
	Type FractionType `json:"type"`
}

// Constituent is a single element or nuclide in a material.
type Constituent struct {
	Name         string          `json:"name"`
	Kind         ConstituentKind `json:"kind"`
	Fraction     float64         `json:"fraction"`
	FractionType FractionType    `json:"fraction_type"`
	Enrichment   *Enrichment     `json:"enrichment,omitempty"`
}

// MaterialSpec is one named material with its density and composition.
type MaterialSpec struct {
	Name         string        `json:"name"`
	Density      Density       `json:"density"`
	Constituents []Constituent `json:"constituents"`
}

// MaterialSet is an ordered collection of materials.
//
// Design decision: A slice rather than a map keeps the declaration order of
// the template, which is also the order the solver input lists materials in.
// Material sets are small, so a linear Lookup is fine.
type MaterialSet []MaterialSpec

// Lookup returns the material with the given name.
func (s MaterialSet) Lookup(name string) (MaterialSpec, bool) {
	for _, m := range s {
		if m.Name == name {
			return m, true
		}
	}
	return MaterialSpec{}, false
}

// Index returns the position of the named material, or -1.
// Solvers identify materials by a 1-based id derived from this position.
func (s MaterialSet) Index(name string) int {
	for i, m := range s {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// Names returns material names in declaration order.
func (s MaterialSet) Names() []string {
	names := make([]string, len(s))
	for i, m := range s {
		names[i] = m.Name
	}
	return names
}
