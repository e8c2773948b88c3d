package model

// VoidMaterial is the material name of a region that contains nothing.
const VoidMaterial = "void"

// Boundary is the boundary condition applied to the outermost surface.
type Boundary string

const (
	// BoundaryVacuum lets particles leave the model.
	BoundaryVacuum Boundary = "vacuum"
	// BoundaryReflective reflects particles back into the model.
	BoundaryReflective Boundary = "reflective"
	// BoundaryTransmission passes particles through unchanged.
	BoundaryTransmission Boundary = "transmission"
)

// Valid reports whether the boundary condition is known.
func (b Boundary) Valid() bool {
	switch b {
	case BoundaryVacuum, BoundaryReflective, BoundaryTransmission:
		return true
	default:
		return false
	}
}

// Region is one spherical shell. It spans from the outer radius of the
// previous region (or the origin) to its own OuterRadius, in cm.
type Region struct {
	Name        string  `json:"name"`
	Material    string  `json:"material"`
	OuterRadius float64 `json:"outer_radius"`
}

// IsVoid reports whether the region is empty.
func (r Region) IsVoid() bool {
	return r.Material == VoidMaterial
}

// GeometrySpec is a set of concentric spheres, innermost first.
type GeometrySpec struct {
	Regions  []Region `json:"regions"`
	Boundary Boundary `json:"boundary"`
}

// InnerRadius returns the inner radius of the region at index i.
func (g GeometrySpec) InnerRadius(i int) float64 {
	if i <= 0 || i > len(g.Regions) {
		return 0
	}
	return g.Regions[i-1].OuterRadius
}

// Region returns the region with the given name.
func (g GeometrySpec) Region(name string) (Region, bool) {
	for _, r := range g.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// RegionIndex returns the position of the named region, or -1.
func (g GeometrySpec) RegionIndex(name string) int {
	for i, r := range g.Regions {
		if r.Name == name {
			return i
		}
	}
	return -1
}
