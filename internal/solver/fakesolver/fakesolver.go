// Package fakesolver is a stand-in for the transport solver used by tests.
//
// A test binary re-executes itself as the solver: the runner is pointed at
// os.Args[0] with Args, and the child process finds EnvHelper set and calls
// Main from its TestHelperProcess function.
//
//	func TestHelperProcess(t *testing.T) {
//		fakesolver.Main()
//	}
//
// The fake reads settings.xml and tallies.xml from its working directory and
// writes a statepoint with one row per requested nuclide.
package fakesolver

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/tbrscan/internal/extract"
)

const (
	// EnvHelper marks the child process as the fake solver.
	EnvHelper = "TBRSCAN_HELPER_PROCESS"

	// EnvMode selects the behaviour, one of the Mode constants.
	EnvMode = "TBRSCAN_HELPER_MODE"

	// EnvExt sets the statepoint extension; "json" when empty.
	EnvExt = "TBRSCAN_HELPER_EXT"
)

// Behaviours of the fake solver.
const (
	ModeSuccess    = "success"
	ModeFail       = "fail"
	ModeNoArtifact = "noartifact"
	ModeHang       = "hang"
)

// Per-nuclide means written by ModeSuccess. Nuclides not listed score
// DefaultMean.
var (
	Means = map[string]float64{"Li6": 0.75, "Li7": 0.3}

	// DefaultMean is scored by tallies without a nuclide breakdown.
	DefaultMean = 1.05

	// StdDev is written on every row.
	StdDev = 0.001
)

// FailExitCode is the exit status of ModeFail.
const FailExitCode = 3

// Args returns the test binary arguments that run only TestHelperProcess.
func Args() []string {
	return []string{"-test.run=^TestHelperProcess$", "--"}
}

// Binary returns the path of the running test binary.
func Binary() string {
	return os.Args[0]
}

// Env returns the environment entries that select mode.
func Env(mode string) []string {
	return []string{EnvHelper + "=1", EnvMode + "=" + mode}
}

// Main runs the fake solver and exits when the process is a helper.
// It returns immediately otherwise, so TestHelperProcess is a no-op in the
// parent test run.
func Main() {
	if os.Getenv(EnvHelper) != "1" {
		return
	}
	os.Exit(run(os.Getenv(EnvMode)))
}

func run(mode string) int {
	fmt.Println("fake solver starting in mode", mode)

	switch mode {
	case ModeFail:
		fmt.Fprintln(os.Stderr, "ERROR: No cross_sections.xml file was specified")
		return FailExitCode
	case ModeNoArtifact:
		fmt.Println("simulation finished without writing a statepoint")
		return 0
	case ModeHang:
		time.Sleep(time.Minute)
		return 0
	}

	sp, err := statepoint()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	ext := os.Getenv(EnvExt)
	if ext == "" {
		ext = "json"
	}
	name := fmt.Sprintf("statepoint.%d.%s", sp.Batches, ext)
	if err := extract.WriteStatepoint(name, sp); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("wrote", name)
	return 0
}

type settingsFile struct {
	Batches int `xml:"batches"`
}

type talliesFile struct {
	Tallies []struct {
		ID       int    `xml:"id,attr"`
		Name     string `xml:"name,attr"`
		Filters  string `xml:"filters"`
		Nuclides string `xml:"nuclides"`
		Scores   string `xml:"scores"`
	} `xml:"tally"`
}

func statepoint() (*extract.Statepoint, error) {
	var settings settingsFile
	if err := readXML("settings.xml", &settings); err != nil {
		return nil, err
	}
	var tallies talliesFile
	if err := readXML("tallies.xml", &tallies); err != nil {
		return nil, err
	}

	sp := &extract.Statepoint{Batches: settings.Batches, Tallies: []extract.Tally{}}
	for _, t := range tallies.Tallies {
		filter, _ := strconv.Atoi(t.Filters)
		tally := extract.Tally{
			ID:       t.ID,
			Name:     t.Name,
			Scores:   strings.Fields(t.Scores),
			Nuclides: strings.Fields(t.Nuclides),
		}
		for _, score := range tally.Scores {
			if len(tally.Nuclides) == 0 {
				tally.Results = append(tally.Results, extract.Row{Filter: filter, Score: score, Mean: DefaultMean, StdDev: StdDev})
				continue
			}
			for _, nuclide := range tally.Nuclides {
				mean, ok := Means[nuclide]
				if !ok {
					mean = DefaultMean
				}
				tally.Results = append(tally.Results, extract.Row{
					Filter:  filter,
					Nuclide: nuclide,
					Score:   score,
					Mean:    mean,
					StdDev:  StdDev,
				})
			}
		}
		sp.Tallies = append(sp.Tallies, tally)
	}
	return sp, nil
}

func readXML(name string, v any) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	return xml.Unmarshal(data, v)
}
