// Package stagecontext defines the canonical, typed output of each stage and
// the pure builders that normalize loosely-typed collaborator output into it.
//
// Builders perform no I/O. Normalization is uniform: free-text season
// descriptors map to a closed enum by keyword, price-like values parse to
// float64 (zero when unparsable), and absent or loosely-typed fields are
// coerced to fixed shapes with documented fallback literals.
//
// Persisting a context (WriteSnapshot) and wrapping contexts into a wire
// payload (AssemblePayload) are separate explicit steps.
package stagecontext
