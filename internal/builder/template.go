package builder

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/nao1215/tbrscan/internal/model"
)

// varRoot is the traversal root of parameter placeholders.
const varRoot = "var"

// ParameterSpec is a parameter declared with a parameter block.
// Declarations are optional; they add range checks and documentation.
type ParameterSpec struct {
	Name        string
	Min         *float64
	Max         *float64
	Description string
}

// Template is a parsed and checked geometry template.
// It is immutable after ParseTemplate returns.
type Template struct {
	name         string
	parameters   []ParameterSpec
	materials    []materialTemplate
	regions      []regionTemplate
	boundary     model.Boundary
	settings     model.RunSettings
	tallies      []model.TallyRequest
	placeholders []string
}

type materialTemplate struct {
	name         string
	density      hcl.Expression
	unit         string
	constituents []constituentTemplate
}

type constituentTemplate struct {
	name             string
	kind             model.ConstituentKind
	fraction         hcl.Expression
	fractionType     model.FractionType
	enrichment       hcl.Expression // nil when the constituent is not enriched
	enrichmentTarget string
	enrichmentType   model.FractionType
}

type regionTemplate struct {
	name        string
	material    string
	outerRadius hcl.Expression
}

// LoadTemplate reads and parses the template file at path.
func LoadTemplate(path string) (*Template, error) {
	src, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return ParseTemplate(src, path)
}

// ParseTemplate parses HCL source. filename is used in diagnostics and as
// the template name.
func ParseTemplate(src []byte, filename string) (*Template, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to parse %s: %s", ErrInvalidTemplate, filename, diags.Error())
	}

	var tf templateFile
	if diags := gohcl.DecodeBody(file.Body, nil, &tf); diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to decode %s: %s", ErrInvalidTemplate, filename, diags.Error())
	}

	t := &Template{name: filepath.Base(filename)}
	if err := t.load(&tf); err != nil {
		return nil, err
	}
	return t, nil
}

// Name returns the base name of the template file.
func (t *Template) Name() string {
	return t.name
}

// Parameters returns the declared parameters in declaration order.
func (t *Template) Parameters() []ParameterSpec {
	return slices.Clone(t.parameters)
}

// Placeholders returns the names of all referenced parameters in order of
// first appearance in the template source.
func (t *Template) Placeholders() []string {
	return slices.Clone(t.placeholders)
}

// Unused returns the sorted names of supplied parameters that the template
// never references.
func (t *Template) Unused(params model.ScanParameters) []string {
	var unused []string
	for _, name := range params.Names() {
		if !slices.Contains(t.placeholders, name) {
			unused = append(unused, name)
		}
	}
	return unused
}

// Tallies returns the names of the tallies the template requests.
func (t *Template) Tallies() []string {
	names := make([]string, len(t.tallies))
	for i, tally := range t.tallies {
		names[i] = tally.Name
	}
	return names
}

// HasTally reports whether the template requests the named tally.
func (t *Template) HasTally(name string) bool {
	return slices.Contains(t.Tallies(), name)
}

func (t *Template) parameter(name string) (ParameterSpec, bool) {
	for _, p := range t.parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// load converts decoded blocks and checks everything that does not depend
// on parameter values.
func (t *Template) load(tf *templateFile) error {
	seen := map[string]bool{}
	for _, p := range tf.Parameters {
		if seen[p.Name] {
			return invalidTemplate(t.name, "duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
			return invalidTemplate(t.name, "parameter %q has min %g greater than max %g", p.Name, *p.Min, *p.Max)
		}
		t.parameters = append(t.parameters, ParameterSpec(*p))
	}

	if err := t.loadMaterials(tf.Materials); err != nil {
		return err
	}
	if err := t.loadGeometry(tf.Geometry); err != nil {
		return err
	}
	if err := t.loadSettings(tf.Settings); err != nil {
		return err
	}
	if err := t.loadTallies(tf.Tallies); err != nil {
		return err
	}
	return t.collectPlaceholders()
}

func (t *Template) loadMaterials(blocks []*materialBlock) error {
	seen := map[string]bool{}
	for _, b := range blocks {
		if b.Name == model.VoidMaterial {
			return invalidTemplate(t.name, "material name %q is reserved", b.Name)
		}
		if seen[b.Name] {
			return invalidTemplate(t.name, "duplicate material %q", b.Name)
		}
		seen[b.Name] = true
		if b.Density == nil {
			return invalidTemplate(t.name, "material %q has no density block", b.Name)
		}

		m := materialTemplate{name: b.Name, density: b.Density.Value, unit: b.Density.Unit}
		for _, group := range []struct {
			kind   model.ConstituentKind
			blocks []*constituentBlock
		}{
			{model.KindElement, b.Elements},
			{model.KindNuclide, b.Nuclides},
		} {
			for _, c := range group.blocks {
				ct, err := t.loadConstituent(b.Name, group.kind, c)
				if err != nil {
					return err
				}
				m.constituents = append(m.constituents, ct)
			}
		}
		if len(m.constituents) == 0 {
			return invalidTemplate(t.name, "material %q has no element or nuclide blocks", b.Name)
		}
		t.materials = append(t.materials, m)
	}
	return nil
}

func (t *Template) loadConstituent(material string, kind model.ConstituentKind, c *constituentBlock) (constituentTemplate, error) {
	ct := constituentTemplate{
		name:         c.Name,
		kind:         kind,
		fraction:     c.Fraction,
		fractionType: fractionTypeOrDefault(c.Type),
	}
	if !ct.fractionType.Valid() {
		return ct, invalidTemplate(t.name, "%s %q in material %q has unknown fraction type %q", kind, c.Name, material, c.Type)
	}

	if isAbsent(c.Enrichment) {
		if c.EnrichmentTarget != "" {
			return ct, invalidTemplate(t.name, "%s %q in material %q has enrichment_target without enrichment", kind, c.Name, material)
		}
		return ct, nil
	}
	if kind != model.KindElement {
		return ct, invalidTemplate(t.name, "nuclide %q in material %q cannot be enriched", c.Name, material)
	}
	if c.EnrichmentTarget == "" {
		return ct, invalidTemplate(t.name, "element %q in material %q needs an enrichment_target", c.Name, material)
	}
	ct.enrichment = c.Enrichment
	ct.enrichmentTarget = c.EnrichmentTarget
	ct.enrichmentType = fractionTypeOrDefault(c.EnrichmentType)
	if !ct.enrichmentType.Valid() {
		return ct, invalidTemplate(t.name, "element %q in material %q has unknown enrichment type %q", c.Name, material, c.EnrichmentType)
	}
	return ct, nil
}

func (t *Template) loadGeometry(b *geometryBlock) error {
	if b == nil {
		return invalidTemplate(t.name, "missing geometry block")
	}
	if len(b.Regions) == 0 {
		return invalidTemplate(t.name, "geometry has no region blocks")
	}

	t.boundary = model.BoundaryVacuum
	if b.Boundary != "" {
		t.boundary = model.Boundary(b.Boundary)
	}
	if !t.boundary.Valid() {
		return invalidTemplate(t.name, "unknown boundary %q", b.Boundary)
	}

	seen := map[string]bool{}
	for _, r := range b.Regions {
		if seen[r.Name] {
			return invalidTemplate(t.name, "duplicate region %q", r.Name)
		}
		seen[r.Name] = true
		if r.Material != model.VoidMaterial && !t.hasMaterial(r.Material) {
			return invalidTemplate(t.name, "region %q references unknown material %q", r.Name, r.Material)
		}
		t.regions = append(t.regions, regionTemplate{name: r.Name, material: r.Material, outerRadius: r.OuterRadius})
	}
	return nil
}

func (t *Template) loadSettings(b *settingsBlock) error {
	if b == nil {
		return invalidTemplate(t.name, "missing settings block")
	}
	if b.Source == nil {
		return invalidTemplate(t.name, "settings has no source block")
	}

	s := model.RunSettings{
		Batches:   b.Batches,
		Particles: b.Particles,
		Inactive:  b.Inactive,
		Mode:      model.ModeFixedSource,
		Source: model.Source{
			Angle:         model.AngleIsotropic,
			Energies:      b.Source.Energies,
			Probabilities: b.Source.Probabilities,
		},
	}
	if b.RunMode != "" {
		s.Mode = model.RunMode(b.RunMode)
	}
	if !s.Mode.Valid() {
		return invalidTemplate(t.name, "unknown run_mode %q", b.RunMode)
	}
	if b.Source.Angle != "" && b.Source.Angle != model.AngleIsotropic {
		return invalidTemplate(t.name, "unsupported source angle %q", b.Source.Angle)
	}
	switch len(b.Source.Point) {
	case 0:
	case 3:
		s.Source.Space = [3]float64(b.Source.Point)
	default:
		return invalidTemplate(t.name, "source point needs 3 coordinates, got %d", len(b.Source.Point))
	}
	if len(s.Source.Energies) == 0 {
		return invalidTemplate(t.name, "source has no energies")
	}
	if s.Source.Probabilities == nil {
		s.Source.Probabilities = make([]float64, len(s.Source.Energies))
		for i := range s.Source.Probabilities {
			s.Source.Probabilities[i] = 1 / float64(len(s.Source.Energies))
		}
	}
	if len(s.Source.Energies) != len(s.Source.Probabilities) {
		return invalidTemplate(t.name, "source has %d energies but %d probabilities",
			len(s.Source.Energies), len(s.Source.Probabilities))
	}
	if s.Batches <= 0 || s.Particles <= 0 {
		return invalidTemplate(t.name, "batches and particles must be positive")
	}
	if s.Inactive < 0 || s.Inactive >= s.Batches {
		return invalidTemplate(t.name, "inactive batches %d must be in [0, %d)", s.Inactive, s.Batches)
	}
	t.settings = s
	return nil
}

func (t *Template) loadTallies(blocks []*tallyBlock) error {
	seen := map[string]bool{}
	for _, b := range blocks {
		if seen[b.Name] {
			return invalidTemplate(t.name, "duplicate tally %q", b.Name)
		}
		seen[b.Name] = true
		if !t.hasRegion(b.Region) {
			return invalidTemplate(t.name, "tally %q references unknown region %q", b.Name, b.Region)
		}
		if len(b.Scores) == 0 {
			return invalidTemplate(t.name, "tally %q has no scores", b.Name)
		}
		t.tallies = append(t.tallies, model.TallyRequest{
			Name:     b.Name,
			Region:   b.Region,
			Scores:   b.Scores,
			Nuclides: b.Nuclides,
		})
	}
	return nil
}

// collectPlaceholders walks every templated expression, rejects references
// that are not var.<name> and records names in source order.
func (t *Template) collectPlaceholders() error {
	type ref struct {
		name string
		pos  int
	}
	var refs []ref

	for _, expr := range t.expressions() {
		for _, traversal := range expr.Variables() {
			name, ok := placeholderName(traversal)
			if !ok {
				rng := traversal.SourceRange()
				return invalidTemplate(t.name, "%s: unsupported reference; only var.<name> is allowed", rng.String())
			}
			refs = append(refs, ref{name: name, pos: traversal.SourceRange().Start.Byte})
		}
	}

	slices.SortStableFunc(refs, func(a, b ref) int { return cmp.Compare(a.pos, b.pos) })
	for _, r := range refs {
		if !slices.Contains(t.placeholders, r.name) {
			t.placeholders = append(t.placeholders, r.name)
		}
	}
	return nil
}

func (t *Template) expressions() []hcl.Expression {
	var exprs []hcl.Expression
	for _, m := range t.materials {
		exprs = append(exprs, m.density)
		for _, c := range m.constituents {
			exprs = append(exprs, c.fraction)
			if c.enrichment != nil {
				exprs = append(exprs, c.enrichment)
			}
		}
	}
	for _, r := range t.regions {
		exprs = append(exprs, r.outerRadius)
	}
	return exprs
}

func (t *Template) hasMaterial(name string) bool {
	return slices.ContainsFunc(t.materials, func(m materialTemplate) bool { return m.name == name })
}

func (t *Template) hasRegion(name string) bool {
	return slices.ContainsFunc(t.regions, func(r regionTemplate) bool { return r.name == name })
}

// placeholderName extracts <name> from a var.<name> traversal.
func placeholderName(traversal hcl.Traversal) (string, bool) {
	if len(traversal) != 2 || traversal.RootName() != varRoot {
		return "", false
	}
	attr, ok := traversal[1].(hcl.TraverseAttr)
	if !ok {
		return "", false
	}
	return attr.Name, true
}

// firstPlaceholder returns the first parameter expr references, if any.
func firstPlaceholder(expr hcl.Expression) (string, bool) {
	for _, traversal := range expr.Variables() {
		if name, ok := placeholderName(traversal); ok {
			return name, true
		}
	}
	return "", false
}

// isAbsent reports whether an optional expression attribute was left out.
// gohcl fills missing expression fields with a static null expression.
func isAbsent(expr hcl.Expression) bool {
	if expr == nil {
		return true
	}
	if len(expr.Variables()) > 0 {
		return false
	}
	v, diags := expr.Value(nil)
	return !diags.HasErrors() && v.IsNull()
}

func fractionTypeOrDefault(s string) model.FractionType {
	if s == "" {
		return model.FractionAtom
	}
	return model.FractionType(s)
}
