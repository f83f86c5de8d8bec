// Package estim provides the core types shared by the estimability analysis
// pipeline.
//
// The package defines the data model consumed and produced by the ranking and
// selection engines:
//
//   - [Parameter]: a named kinetic parameter with bounds and a fixed flag
//   - [ParameterSet]: an immutable, ordered collection of parameters
//   - [Model]: the mutable adapter sitting at the solver boundary
//   - [Solver]: a blocking nonlinear least-squares collaborator
//   - [Results]: trajectories and diagnostics produced by a solve
//
// # Example
//
//	ps, _ := estim.NewParameterSet(
//	    estim.Parameter{Name: "k1", Value: 2, Lower: 0, Upper: 5},
//	    estim.Parameter{Name: "k2", Value: 0.2, Lower: 0, Upper: 2},
//	)
//	reduced := ps.Fix("k2")
//
// # Thread Safety
//
// ParameterSet values are safe to share. Model implementations are NOT
// thread-safe; a single model must never be solved concurrently.
package estim
