package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/nao1215/tbrscan/internal/model"
)

// SolverSection configures the solver invocation in the config file.
type SolverSection struct {
	// Binary is the solver binary, a name on PATH or a path.
	Binary string `yaml:"binary,omitempty"`

	// Args are extra arguments passed to the solver.
	Args []string `yaml:"args,omitempty"`

	// Threads is the thread count of each solver process.
	Threads int `yaml:"threads,omitempty"`

	// Timeout limits each solver run, e.g. "30m".
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Env is added to the solver's environment.
	Env map[string]string `yaml:"env,omitempty"`

	// ArtifactExt is the extension of the statepoint the solver writes.
	ArtifactExt string `yaml:"artifact_ext,omitempty"`
}

// ScanSection configures the scan layout in the config file.
type ScanSection struct {
	// Tally names the tally aggregated into the result file.
	Tally string `yaml:"tally,omitempty"`

	// ResultFile is the result file name inside each point directory.
	ResultFile string `yaml:"result_file,omitempty"`

	// WorkDir is the parent of every point's working directory.
	// Relative paths are resolved against the current directory.
	WorkDir string `yaml:"workdir,omitempty"`

	// Batch is the number of points run concurrently.
	Batch int `yaml:"batch,omitempty"`

	// DBDir is the directory of the scan history database.
	DBDir string `yaml:"db_dir,omitempty"`

	// SaveToDB disables the history database when set to false.
	SaveToDB *bool `yaml:"save_to_db,omitempty"`
}

// File represents the structure of the .tbrscan configuration file.
type File struct {
	// Template is the HCL geometry template. Relative paths are resolved
	// against the directory of the config file.
	Template string `yaml:"template,omitempty"`

	// Solver configures the solver invocation.
	Solver SolverSection `yaml:"solver,omitempty"`

	// Scan configures the scan layout.
	Scan ScanSection `yaml:"scan,omitempty"`

	// Params are fixed parameters shared by every point.
	Params map[string]float64 `yaml:"params,omitempty"`

	// Sweep lists the scanned parameters; points are their Cartesian product.
	Sweep []Sweep `yaml:"sweep,omitempty"`

	// Points lists explicit points. Each point is completed with Params.
	Points []map[string]float64 `yaml:"points,omitempty"`

	// dir is the directory the file was loaded from.
	dir string
}

// Apply copies every value set in the file into cfg.
func (f *File) Apply(cfg *Config) {
	if f.Template != "" {
		cfg.TemplatePath = f.resolve(f.Template)
	}

	if f.Solver.Binary != "" {
		cfg.Solver = f.Solver.Binary
	}
	if len(f.Solver.Args) > 0 {
		cfg.SolverArgs = slices.Clone(f.Solver.Args)
	}
	if f.Solver.Threads != 0 {
		cfg.Threads = f.Solver.Threads
	}
	if f.Solver.Timeout != 0 {
		cfg.Timeout = f.Solver.Timeout
	}
	for _, k := range slices.Sorted(maps.Keys(f.Solver.Env)) {
		cfg.SolverEnv = append(cfg.SolverEnv, k+"="+f.Solver.Env[k])
	}
	if f.Solver.ArtifactExt != "" {
		cfg.ArtifactExt = f.Solver.ArtifactExt
	}

	if f.Scan.Tally != "" {
		cfg.Tally = f.Scan.Tally
	}
	if f.Scan.ResultFile != "" {
		cfg.ResultFile = f.Scan.ResultFile
	}
	if f.Scan.WorkDir != "" {
		cfg.WorkDir = f.Scan.WorkDir
	}
	if f.Scan.Batch != 0 {
		cfg.BatchSize = f.Scan.Batch
	}
	if f.Scan.DBDir != "" {
		cfg.DBDir = f.Scan.DBDir
	}
	if f.Scan.SaveToDB != nil {
		cfg.SaveToDB = *f.Scan.SaveToDB
	}
}

// ScanPoints returns the points the file describes: the explicit points
// followed by the product of the sweeps, each completed with Params. Params
// alone form a single point.
func (f *File) ScanPoints() ([]model.ScanParameters, error) {
	var points []model.ScanParameters
	for i, p := range f.Points {
		if len(p) == 0 {
			return nil, fmt.Errorf("point %d of the config file is empty", i)
		}
		merged := maps.Clone(f.Params)
		if merged == nil {
			merged = map[string]float64{}
		}
		maps.Copy(merged, p)
		points = append(points, model.NewScanParameters(merged))
	}

	if len(f.Sweep) > 0 || len(points) == 0 {
		swept, err := ExpandSweeps(f.Params, f.Sweep)
		if err != nil {
			return nil, err
		}
		points = append(points, swept...)
	}
	return points, nil
}

func (f *File) resolve(path string) string {
	if f.dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.dir, path)
}
