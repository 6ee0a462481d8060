// Package harness runs optimizer scenarios.
//
// A scenario names a pipeline, a plan and the tables the plan reads. The
// harness optimizes a copy of the plan, evaluates both copies against the
// tables and checks that they agree, then checks the scenario's
// expectations against the optimized plan.
//
// # Scenario Format
//
//	name: sum_over_partitions
//	description: "two-phase sum"
//	partitions: 2
//	pipeline: [mitosis, mergetable, deadcode]
//	tables:
//	  sys.t.c: [1, 2, 3, 4, 5, 6]
//	plan: |
//	  X_1:bat[:int] := sql.bind("sys", "t", "c");
//	  X_2:lng := aggr.sum(X_1);
//	expect:
//	  actions: {mergetable: 1}
//	  results: {X_2: 21}
//	  contains: ["aggr.sum"]
//
// Instead of pipeline, a scenario may name a preset ("minimal" or
// "default"). Expected results are scalars or lists; a list matches a
// column holding the same values in any order. Integers and doubles
// compare numerically.
//
// # Deterministic Testing
//
// Pass timings come from a step clock, so the listing of an optimized
// plan, history annotations included, is identical across runs. This is
// what makes golden comparison possible:
//
//	func TestScenarios(t *testing.T) {
//	    s, err := harness.LoadScenario("testdata/sum.yaml")
//	    require.NoError(t, err)
//	    require.NoError(t, harness.RunWithGolden(t, s))
//	}
package harness
