// Package builder turns scan parameters and a geometry template into a
// concrete model.RunConfig.
//
// Templates are HCL documents. Numeric attributes that depend on the scan
// (material densities, constituent fractions and enrichments, region radii)
// are HCL expressions that may reference parameters as var.<name>:
//
//	region "first_wall" {
//	  material     = "steel"
//	  outer_radius = var.inner_radius + 10
//	}
//
// A Template is parsed and checked once with ParseTemplate or LoadTemplate.
// Build then evaluates it for one ScanParameters value. Build has no side
// effects and keeps no state between calls, so a single Template can be
// shared by all workers of a batch.
package builder
