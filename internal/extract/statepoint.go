package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Statepoint is the tally section of a solver artifact.
type Statepoint struct {
	Batches int     `json:"batches" yaml:"batches"`
	Tallies []Tally `json:"tallies" yaml:"tallies"`
}

// Tally is one tally of a statepoint.
type Tally struct {
	ID       int      `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Scores   []string `json:"scores,omitempty" yaml:"scores,omitempty"`
	Nuclides []string `json:"nuclides,omitempty" yaml:"nuclides,omitempty"`
	Results  []Row    `json:"results" yaml:"results"`
}

// Row is one result entry of a tally.
type Row struct {
	Filter  int     `json:"filter" yaml:"filter"`
	Nuclide string  `json:"nuclide,omitempty" yaml:"nuclide,omitempty"`
	Score   string  `json:"score" yaml:"score"`
	Mean    float64 `json:"mean" yaml:"mean"`
	StdDev  float64 `json:"std_dev" yaml:"std_dev"`
}

// Find returns the tally with the given name.
func (s *Statepoint) Find(name string) (*Tally, bool) {
	for i := range s.Tallies {
		if s.Tallies[i].Name == name {
			return &s.Tallies[i], true
		}
	}
	return nil, false
}

// Reader decodes statepoint bytes.
type Reader func(data []byte, sp *Statepoint) error

// errNoTallies is wrapped in an ArtifactError when the tallies key is absent.
var errNoTallies = errors.New("missing tallies section")

// JSONReader decodes a JSON statepoint.
func JSONReader(data []byte, sp *Statepoint) error {
	return json.Unmarshal(data, sp)
}

// YAMLReader decodes a YAML statepoint.
func YAMLReader(data []byte, sp *Statepoint) error {
	return yaml.Unmarshal(data, sp)
}

func defaultReaders() map[string]Reader {
	return map[string]Reader{
		"json": JSONReader,
		"yaml": YAMLReader,
		"yml":  YAMLReader,
	}
}

// ReadStatepoint reads the statepoint at path with the default readers,
// chosen by file extension.
func ReadStatepoint(path string) (*Statepoint, error) {
	return readStatepoint(path, defaultReaders())
}

func readStatepoint(path string, readers map[string]Reader) (*Statepoint, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	read, ok := readers[ext]
	if !ok {
		return nil, &ArtifactError{Path: path, Err: fmt.Errorf("unsupported artifact extension %q", ext)}
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}

	var sp Statepoint
	if err := read(data, &sp); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	if sp.Tallies == nil {
		return nil, &ArtifactError{Path: path, Err: errNoTallies}
	}
	return &sp, nil
}

// WriteStatepoint writes sp to path as JSON or YAML depending on the
// extension. It is the inverse of ReadStatepoint.
func WriteStatepoint(path string, sp *Statepoint) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(sp)
	default:
		data, err = json.MarshalIndent(sp, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode statepoint: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
