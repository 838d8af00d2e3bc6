package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/persontime/timeline"
)

// RunWithGolden executes a scenario and compares the resulting table against
// a golden file, in addition to the scenario's own assertions. The golden
// file is stored in testdata/golden/{scenario.Name}.golden and holds the
// table in canonical text form.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can inspect provenance; assertion failures
// are reported through result.Errors as usual, while a golden mismatch fails
// the test directly via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's table against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := timeline.MarshalCanonical(result.Table)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
