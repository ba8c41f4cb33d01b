package nbadet

// grow extends s with zero values up to length size.
func grow[T any](s []T, size int) []T {
	if len(s) >= size {
		return s
	}
	return append(s, make([]T, size-len(s))...)
}
