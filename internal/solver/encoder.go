package solver

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/tbrscan/internal/model"
)

// Input file names written by XMLEncoder.
const (
	MaterialsFile = "materials.xml"
	GeometryFile  = "geometry.xml"
	SettingsFile  = "settings.xml"
	TalliesFile   = "tallies.xml"
)

// Encoder serializes a RunConfig into solver input files in dir.
type Encoder interface {
	// Encode writes the input files and returns their paths.
	Encode(cfg *model.RunConfig, dir string) ([]string, error)
}

// XMLEncoder writes the four XML input files the transport solver reads.
type XMLEncoder struct{}

// Encode implements Encoder.
func (XMLEncoder) Encode(cfg *model.RunConfig, dir string) ([]string, error) {
	docs := []struct {
		name string
		doc  any
	}{
		{MaterialsFile, materialsDoc(cfg)},
		{GeometryFile, geometryDoc(cfg)},
		{SettingsFile, settingsDoc(cfg)},
		{TalliesFile, talliesDoc(cfg)},
	}

	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		path := filepath.Join(dir, d.name)
		if err := writeXML(path, d.doc); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeXML(path string, doc any) error {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// === materials.xml ===

type xmlMaterials struct {
	XMLName   xml.Name      `xml:"materials"`
	Materials []xmlMaterial `xml:"material"`
}

type xmlMaterial struct {
	ID       int              `xml:"id,attr"`
	Name     string           `xml:"name,attr"`
	Density  xmlDensity       `xml:"density"`
	Elements []xmlConstituent `xml:"element"`
	Nuclides []xmlConstituent `xml:"nuclide"`
}

type xmlDensity struct {
	Units string `xml:"units,attr"`
	Value string `xml:"value,attr"`
}

type xmlConstituent struct {
	Name             string `xml:"name,attr"`
	AO               string `xml:"ao,attr,omitempty"`
	WO               string `xml:"wo,attr,omitempty"`
	Enrichment       string `xml:"enrichment,attr,omitempty"`
	EnrichmentTarget string `xml:"enrichment_target,attr,omitempty"`
	EnrichmentType   string `xml:"enrichment_type,attr,omitempty"`
}

func materialsDoc(cfg *model.RunConfig) xmlMaterials {
	doc := xmlMaterials{}
	for i, m := range cfg.Materials {
		xm := xmlMaterial{
			ID:      i + 1,
			Name:    m.Name,
			Density: xmlDensity{Units: m.Density.Unit, Value: model.FormatFloat(m.Density.Value)},
		}
		for _, c := range m.Constituents {
			xc := xmlConstituent{Name: c.Name}
			if c.FractionType == model.FractionWeight {
				xc.WO = model.FormatFloat(c.Fraction)
			} else {
				xc.AO = model.FormatFloat(c.Fraction)
			}
			if c.Enrichment != nil {
				xc.Enrichment = model.FormatFloat(c.Enrichment.Percent)
				xc.EnrichmentTarget = c.Enrichment.Target
				xc.EnrichmentType = string(c.Enrichment.Type)
			}
			if c.Kind == model.KindNuclide {
				xm.Nuclides = append(xm.Nuclides, xc)
			} else {
				xm.Elements = append(xm.Elements, xc)
			}
		}
		doc.Materials = append(doc.Materials, xm)
	}
	return doc
}

// === geometry.xml ===

type xmlGeometry struct {
	XMLName  xml.Name     `xml:"geometry"`
	Cells    []xmlCell    `xml:"cell"`
	Surfaces []xmlSurface `xml:"surface"`
}

type xmlCell struct {
	ID       int    `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	Material string `xml:"material,attr"`
	Region   string `xml:"region,attr"`
	Universe int    `xml:"universe,attr"`
}

type xmlSurface struct {
	ID       int    `xml:"id,attr"`
	Type     string `xml:"type,attr"`
	Coeffs   string `xml:"coeffs,attr"`
	Boundary string `xml:"boundary,attr"`
}

// geometryDoc writes one sphere surface per region and one cell per shell.
// Cell i lies inside surface i and outside surface i-1.
func geometryDoc(cfg *model.RunConfig) xmlGeometry {
	doc := xmlGeometry{}
	regions := cfg.Geometry.Regions
	for i, r := range regions {
		boundary := string(model.BoundaryTransmission)
		if i == len(regions)-1 {
			boundary = string(cfg.Geometry.Boundary)
		}
		doc.Surfaces = append(doc.Surfaces, xmlSurface{
			ID:       i + 1,
			Type:     "sphere",
			Coeffs:   "0 0 0 " + model.FormatFloat(r.OuterRadius),
			Boundary: boundary,
		})

		region := "-" + strconv.Itoa(i+1)
		if i > 0 {
			region = strconv.Itoa(i) + " " + region
		}
		material := model.VoidMaterial
		if !r.IsVoid() {
			material = strconv.Itoa(cfg.Materials.Index(r.Material) + 1)
		}
		doc.Cells = append(doc.Cells, xmlCell{
			ID:       i + 1,
			Name:     r.Name,
			Material: material,
			Region:   region,
		})
	}
	return doc
}

// === settings.xml ===

type xmlSettings struct {
	XMLName   xml.Name  `xml:"settings"`
	RunMode   string    `xml:"run_mode"`
	Particles int       `xml:"particles"`
	Batches   int       `xml:"batches"`
	Inactive  int       `xml:"inactive"`
	Source    xmlSource `xml:"source"`
}

type xmlSource struct {
	Strength string  `xml:"strength,attr"`
	Space    xmlDist `xml:"space"`
	Angle    xmlDist `xml:"angle"`
	Energy   xmlDist `xml:"energy"`
}

type xmlDist struct {
	Type       string `xml:"type,attr"`
	Parameters string `xml:"parameters,omitempty"`
}

func settingsDoc(cfg *model.RunConfig) xmlSettings {
	s := cfg.Settings
	energy := make([]string, 0, 2*len(s.Source.Energies))
	for _, e := range s.Source.Energies {
		energy = append(energy, model.FormatFloat(e))
	}
	for _, p := range s.Source.Probabilities {
		energy = append(energy, model.FormatFloat(p))
	}
	return xmlSettings{
		RunMode:   string(s.Mode),
		Particles: s.Particles,
		Batches:   s.Batches,
		Inactive:  s.Inactive,
		Source: xmlSource{
			Strength: "1.0",
			Space:    xmlDist{Type: "point", Parameters: joinFloats(s.Source.Space[:])},
			Angle:    xmlDist{Type: s.Source.Angle},
			Energy:   xmlDist{Type: "discrete", Parameters: strings.Join(energy, " ")},
		},
	}
}

// === tallies.xml ===

type xmlTallies struct {
	XMLName xml.Name    `xml:"tallies"`
	Filters []xmlFilter `xml:"filter"`
	Tallies []xmlTally  `xml:"tally"`
}

type xmlFilter struct {
	ID   int    `xml:"id,attr"`
	Type string `xml:"type,attr"`
	Bins string `xml:"bins"`
}

type xmlTally struct {
	ID       int    `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	Filters  string `xml:"filters"`
	Nuclides string `xml:"nuclides,omitempty"`
	Scores   string `xml:"scores"`
}

func talliesDoc(cfg *model.RunConfig) xmlTallies {
	doc := xmlTallies{}
	for i, t := range cfg.Tallies {
		cell := cfg.Geometry.RegionIndex(t.Region) + 1
		doc.Filters = append(doc.Filters, xmlFilter{ID: i + 1, Type: "cell", Bins: strconv.Itoa(cell)})
		doc.Tallies = append(doc.Tallies, xmlTally{
			ID:       i + 1,
			Name:     t.Name,
			Filters:  strconv.Itoa(i + 1),
			Nuclides: strings.Join(t.Nuclides, " "),
			Scores:   strings.Join(t.Scores, " "),
		})
	}
	return doc
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = model.FormatFloat(v)
	}
	return strings.Join(parts, " ")
}
