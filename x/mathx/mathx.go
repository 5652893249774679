// Package mathx carries the generic numeric helpers the firmware uses in
// place of scattered if chains.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. Reversed bounds are swapped first.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// Between reports whether v lies in [lo, hi], bounds included. Reversed
// bounds are swapped first.
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo <= v && v <= hi
}

func Min[T constraints.Ordered](a, b T) T {
	if b < a {
		return b
	}
	return a
}

func Max[T constraints.Ordered](a, b T) T {
	if b > a {
		return b
	}
	return a
}
