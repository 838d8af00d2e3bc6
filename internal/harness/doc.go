// Package harness provides scenario-based conformance testing for the
// interval engines.
//
// A scenario declares a small cohort (study windows, episodes, events), the
// stage options to run it with, and assertions on the resulting interval
// table. The harness runs the exposure stage, optionally feeds the result
// through the event stage, and evaluates the assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	run_id: fixed-run-id            # optional; empty means name-1, name-2, ...
//	windows:
//	  - {id: "1", entry: 0, exit: 365}
//	episodes:
//	  - {id: "1", start: 59, stop: 240, value: 1}
//	events:
//	  - {id: "1", date: 120}
//	exposure:
//	  reference: 0
//	  grace: 30
//	event:
//	  semantics: single
//	assertions:
//	  - type: person_time
//	    id: "1"
//	    total: 365
//	  - type: canonical
//
// The exposure block is required; events and the event block are optional.
// Golden comparison renders the final table in canonical form and checks it
// against testdata/golden/{name}.golden via goldie.
package harness
