package builder

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/nao1215/tbrscan/internal/model"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// fractionSuffix marks parameters that must lie in [0, 1].
const fractionSuffix = "_fraction"

// Build evaluates tmpl for params and returns a concrete run configuration.
//
// Errors, in the order they are checked:
//   - *MissingParameterError for the first placeholder params lacks
//   - *InvalidParameterError for non-finite values, declared min/max and
//     *_fraction names outside [0, 1]
//   - *InvalidParameterError for derived values: radii that are not positive
//     and strictly increasing, enrichments outside [0, 100] percent,
//     negative fractions and non-positive densities
//
// Build is pure; the same inputs always give the same RunConfig.
func Build(params model.ScanParameters, tmpl *Template) (*model.RunConfig, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("%w: nil template", ErrInvalidTemplate)
	}

	for _, key := range tmpl.placeholders {
		if !params.Has(key) {
			return nil, &MissingParameterError{Key: key}
		}
	}
	if err := checkParameters(params, tmpl); err != nil {
		return nil, err
	}

	e := &evaluator{
		params: params,
		tmpl:   tmpl,
		ctx:    evalContext(params),
	}

	cfg := &model.RunConfig{
		Geometry: model.GeometrySpec{Boundary: tmpl.boundary},
		Settings: copySettings(tmpl.settings),
		Tallies:  copyTallies(tmpl.tallies),
	}

	for _, m := range tmpl.materials {
		spec, err := e.material(m)
		if err != nil {
			return nil, err
		}
		cfg.Materials = append(cfg.Materials, spec)
	}

	prev := 0.0
	prevName := ""
	for _, r := range tmpl.regions {
		radius, err := e.number(r.outerRadius, "outer_radius of region "+r.name)
		if err != nil {
			return nil, err
		}
		if radius <= 0 {
			return nil, e.invalid(r.outerRadius, "outer_radius of region "+r.name, radius,
				fmt.Sprintf("outer radius of region %q must be positive, got %g", r.name, radius))
		}
		if radius <= prev {
			return nil, e.invalid(r.outerRadius, "outer_radius of region "+r.name, radius,
				fmt.Sprintf("outer radius of region %q (%g) must exceed that of region %q (%g)", r.name, radius, prevName, prev))
		}
		cfg.Geometry.Regions = append(cfg.Geometry.Regions, model.Region{
			Name:        r.name,
			Material:    r.material,
			OuterRadius: radius,
		})
		prev, prevName = radius, r.name
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkParameters validates supplied values before any expression is
// evaluated. Placeholders are checked first in template order, then the
// remaining supplied names in sorted order.
func checkParameters(params model.ScanParameters, tmpl *Template) error {
	names := slices.Clone(tmpl.placeholders)
	for _, name := range params.Names() {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	for _, name := range names {
		v, _ := params.Get(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidParameterError{Name: name, Value: v, Constraint: "value must be finite"}
		}
		if spec, ok := tmpl.parameter(name); ok {
			if spec.Min != nil && v < *spec.Min {
				return &InvalidParameterError{Name: name, Value: v, Constraint: fmt.Sprintf("must be at least %g", *spec.Min)}
			}
			if spec.Max != nil && v > *spec.Max {
				return &InvalidParameterError{Name: name, Value: v, Constraint: fmt.Sprintf("must be at most %g", *spec.Max)}
			}
		}
		if strings.HasSuffix(name, fractionSuffix) && (v < 0 || v > 1) {
			return &InvalidParameterError{Name: name, Value: v, Constraint: "fraction must be within [0, 1]"}
		}
	}
	return nil
}

func evalContext(params model.ScanParameters) *hcl.EvalContext {
	vars := make(map[string]cty.Value, params.Len())
	for name, v := range params.Values() {
		vars[name] = cty.NumberFloatVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{varRoot: cty.ObjectVal(vars)},
	}
}

type evaluator struct {
	params model.ScanParameters
	tmpl   *Template
	ctx    *hcl.EvalContext
}

func (e *evaluator) material(m materialTemplate) (model.MaterialSpec, error) {
	density, err := e.number(m.density, "density of material "+m.name)
	if err != nil {
		return model.MaterialSpec{}, err
	}
	if density <= 0 {
		return model.MaterialSpec{}, e.invalid(m.density, "density of material "+m.name, density,
			fmt.Sprintf("density of material %q must be positive, got %g", m.name, density))
	}

	spec := model.MaterialSpec{
		Name:    m.name,
		Density: model.Density{Value: density, Unit: m.unit},
	}
	for _, c := range m.constituents {
		what := fmt.Sprintf("fraction of %s %s in material %s", c.kind, c.name, m.name)
		fraction, err := e.number(c.fraction, what)
		if err != nil {
			return model.MaterialSpec{}, err
		}
		if fraction < 0 {
			return model.MaterialSpec{}, e.invalid(c.fraction, what, fraction,
				fmt.Sprintf("%s must not be negative, got %g", what, fraction))
		}

		constituent := model.Constituent{
			Name:         c.name,
			Kind:         c.kind,
			Fraction:     fraction,
			FractionType: c.fractionType,
		}
		if c.enrichment != nil {
			what := fmt.Sprintf("enrichment of %s in material %s", c.name, m.name)
			percent, err := e.number(c.enrichment, what)
			if err != nil {
				return model.MaterialSpec{}, err
			}
			if percent < 0 || percent > 100 {
				return model.MaterialSpec{}, e.invalid(c.enrichment, what, percent,
					fmt.Sprintf("%s must be within [0, 100] percent, got %g", what, percent))
			}
			constituent.Enrichment = &model.Enrichment{
				Percent: percent,
				Target:  c.enrichmentTarget,
				Type:    c.enrichmentType,
			}
		}
		spec.Constituents = append(spec.Constituents, constituent)
	}
	return spec, nil
}

// number evaluates expr to a finite float64.
func (e *evaluator) number(expr hcl.Expression, what string) (float64, error) {
	val, diags := expr.Value(e.ctx)
	if diags.HasErrors() {
		return 0, fmt.Errorf("%w: %s: failed to evaluate %s: %s", ErrInvalidTemplate, e.tmpl.name, what, diags.Error())
	}
	if val.IsNull() || !val.IsKnown() {
		return 0, invalidTemplate(e.tmpl.name, "%s has no value", what)
	}
	num, err := convert.Convert(val, cty.Number)
	if err != nil {
		return 0, invalidTemplate(e.tmpl.name, "%s is not a number: %v", what, err)
	}
	f, _ := num.AsBigFloat().Float64()
	if math.IsInf(f, 0) {
		return 0, e.invalid(expr, what, f, what+" must be finite")
	}
	return f, nil
}

// invalid builds an InvalidParameterError that names the first parameter
// expr references, falling back to the attribute description.
func (e *evaluator) invalid(expr hcl.Expression, what string, derived float64, constraint string) error {
	if name, ok := firstPlaceholder(expr); ok {
		v, _ := e.params.Get(name)
		return &InvalidParameterError{Name: name, Value: v, Constraint: constraint}
	}
	return &InvalidParameterError{Name: what, Value: derived, Constraint: constraint}
}

func copySettings(s model.RunSettings) model.RunSettings {
	s.Source.Energies = slices.Clone(s.Source.Energies)
	s.Source.Probabilities = slices.Clone(s.Source.Probabilities)
	return s
}

func copyTallies(tallies []model.TallyRequest) []model.TallyRequest {
	out := make([]model.TallyRequest, len(tallies))
	for i, t := range tallies {
		t.Scores = slices.Clone(t.Scores)
		t.Nuclides = slices.Clone(t.Nuclides)
		out[i] = t
	}
	return out
}
