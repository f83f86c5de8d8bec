// Package analysis provides SVD based matrix diagnostics.
//
// The package characterises the linear structure of matrices used during
// estimability and data analysis:
//
//   - [Rank]: numerical rank from singular values
//   - [Nullspace]: orthonormal basis of the right null space
//   - [AnalyzePseudoEquivalency]: expected number of absorbing species from
//     a pseudo-equivalency matrix
//
// # Tolerances
//
// Rank counts singular values strictly above eps. Nullspace treats a singular
// value s as zero when s < max(atol, rtol*s_max):
//
//	r, _ := analysis.Rank(a, analysis.DefaultRankEps)
//	ns, _ := analysis.Nullspace(a, analysis.DefaultNullAtol, analysis.DefaultNullRtol)
//
// All functions are pure and never modify their arguments.
package analysis
