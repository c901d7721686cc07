// Package harness runs reasoning scenarios as executable contract tests.
//
// A scenario is a YAML file naming a program (YAML, CUE or rule text), a
// horizon and a list of worker counts. The harness reasons the program once
// per worker count with a fixed run ID, checks that every run produced the
// same interpretation digest, stores the result in an in-memory snapshot
// store and reloads it, then evaluates the scenario's assertions.
//
// Example scenario:
//
//	name: supply_chain
//	description: "Disruption propagates one supplier tier per timestep"
//	program: ../programs/supply.chl
//	max_t: 2
//	workers: [1, 4]
//	assertions:
//	  - type: first_at
//	    fact: "atRisk(s2)"
//	    time: 2
//	  - type: explainable
//	    fact: "atRisk(s2)"
//	    time: 2
//	    rule: upstream
//
// Golden files hold the rendered interpretation (see RenderSnapshot) and
// live in testdata/golden. Regenerate them with:
//
//	go test ./internal/harness -update
package harness
