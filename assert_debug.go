//go:build nbadetdebug

package nbadet

// debugChecks validates every computed macro-state and panics on a broken invariant.
const debugChecks = true
