package harness

import (
	"context"
	"fmt"

	"github.com/roach88/persontime/event"
	"github.com/roach88/persontime/expose"
	"github.com/roach88/persontime/internal/testutil"
	"github.com/roach88/persontime/timeline"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every assertion holds.
	Pass bool

	// Table is the final interval table: the event stage output when the
	// scenario configures one, otherwise the exposure stage output.
	Table *timeline.Table

	// Runs holds one provenance record per executed stage, in order.
	Runs []timeline.RunInfo

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Run executes a test scenario and returns the result.
//
// Stages run with a deterministic run-id generator so provenance records
// and golden output are reproducible. A fixed run_id in the scenario makes
// every stage share that id; otherwise stages are numbered name-1, name-2.
//
// Execution flow:
// 1. Convert the declared cohort to engine inputs
// 2. Run the exposure stage over windows and episodes
// 3. Feed the result through the event stage when configured
// 4. Evaluate assertions against the final table
func Run(scenario *Scenario) (*Result, error) {
	windows, episodes, events, err := scenario.cohort()
	if err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	var runIDs timeline.RunIDGenerator
	if scenario.RunID != "" {
		runIDs = testutil.NewFixedRunIDGenerator(scenario.RunID)
	} else {
		runIDs = testutil.NewSequenceRunIDGenerator(scenario.Name)
	}

	ctx := context.Background()
	result := &Result{Pass: true}

	espec, err := scenario.Exposure.spec()
	if err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	partitioner, err := expose.New(espec, expose.WithRunIDs(runIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to build exposure stage: %w", err)
	}
	exp, err := partitioner.Run(ctx, windows, episodes)
	if err != nil {
		return nil, fmt.Errorf("exposure stage: %w", err)
	}
	result.Table = exp.Table
	result.Runs = append(result.Runs, exp.Run)

	if scenario.Event != nil {
		evspec, err := scenario.Event.spec()
		if err != nil {
			return nil, fmt.Errorf("invalid scenario: %w", err)
		}
		splitter, err := event.New(evspec, event.WithRunIDs(runIDs))
		if err != nil {
			return nil, fmt.Errorf("failed to build event stage: %w", err)
		}
		ev, err := splitter.Run(ctx, result.Table, events)
		if err != nil {
			return nil, fmt.Errorf("event stage: %w", err)
		}
		result.Table = ev.Table
		result.Runs = append(result.Runs, ev.Run)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// cohort converts the declared rows to engine input types.
func (s *Scenario) cohort() ([]timeline.StudyWindow, []timeline.Episode, []timeline.EventRecord, error) {
	windows := make([]timeline.StudyWindow, len(s.Windows))
	for i, w := range s.Windows {
		windows[i] = timeline.StudyWindow{ID: w.ID, Entry: w.Entry, Exit: w.Exit}
	}

	episodes := make([]timeline.Episode, len(s.Episodes))
	for i, e := range s.Episodes {
		v, err := stateValue(e.Value)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("episodes[%d]: %w", i, err)
		}
		episodes[i] = timeline.Episode{ID: e.ID, Start: e.Start, Stop: e.Stop, Value: v, Priority: e.Priority}
	}

	events := make([]timeline.EventRecord, len(s.Events))
	for i, ev := range s.Events {
		rec := timeline.EventRecord{ID: ev.ID}
		if ev.Date != nil {
			rec.Date = timeline.NewDate(*ev.Date)
		}
		for _, c := range ev.Competing {
			if c != nil {
				rec.Competing = append(rec.Competing, timeline.NewDate(*c))
			} else {
				rec.Competing = append(rec.Competing, timeline.Date{})
			}
		}
		events[i] = rec
	}

	return windows, episodes, events, nil
}
