package builder

import (
	_ "embed"
)

// DefaultTemplateName is the name reported by the embedded template.
const DefaultTemplateName = "spherical_blanket.hcl"

//go:embed templates/spherical_blanket.hcl
var defaultTemplateSource []byte

// DefaultTemplateSource returns the HCL source of the embedded template,
// e.g. for writing it out with "tbrscan init --template-out".
func DefaultTemplateSource() []byte {
	out := make([]byte, len(defaultTemplateSource))
	copy(out, defaultTemplateSource)
	return out
}

// DefaultTemplate parses the embedded spherical blanket template.
// Its placeholders are enrichment_fraction, inner_radius and outer_radius.
func DefaultTemplate() (*Template, error) {
	return ParseTemplate(defaultTemplateSource, DefaultTemplateName)
}
