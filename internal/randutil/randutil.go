// Package randutil centralises how the module derives rand/v2 sources from a
// single int64 seed, so every call site gets reproducible sequences.
package randutil

import rand "math/rand/v2"

// New returns a *rand.Rand seeded deterministically from seed. The two 64-bit
// words required by PCG are derived by running the seed through a splitmix
// finalizer twice with different offsets.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(scramble(u), scramble(u^0xd1342543de82ef95)))
}

func scramble(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
