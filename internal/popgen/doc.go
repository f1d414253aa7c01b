// Package popgen implements a forward-time Wright-Fisher simulation core for
// diploid populations.
//
// Mutations live by value in a MutationPool and gametes live in a GametePool;
// everything else refers to them by index. A generation is one call to
// SampleDiploid (or its multi-deme and multilocus variants) followed by one
// call to UpdateMutations, which recomputes mutation counts and retires fixed
// and lost mutations. AddMutation places a mutation directly, outside the
// generational loop.
//
// Nothing in this package is safe for concurrent use. The random source is
// supplied by the caller on every call.
package popgen
