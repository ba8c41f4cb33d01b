//go:build !nbadetdebug

package nbadet

const debugChecks = false
