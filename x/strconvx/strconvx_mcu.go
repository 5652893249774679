//go:build rp2040 || rp2350

package strconvx

import "errors"

// Allocation-aware replacements with strconv signatures and semantics:
// base 0 infers 0x/0b/0o and bare leading-zero octal, out-of-range values
// clamp and return ErrRange. Divergences from strconv: no underscore
// digit separators, and the float helpers are decimal-basic (no exponent
// forms, no Inf/NaN). Keep float use on the MCU to debug output.

var (
	ErrSyntax = errors.New("invalid syntax")
	ErrRange  = errors.New("value out of range")
)

func Itoa(i int) string { return FormatInt(int64(i), 10) }

func Atoi(s string) (int, error) {
	v, err := ParseInt(s, 10, 0)
	return int(v), err
}

// ---- Formatting ----

const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

func FormatInt(i int64, base int) string {
	if i >= 0 {
		return FormatUint(uint64(i), base)
	}
	return "-" + FormatUint(uint64(-i), base)
}

func FormatUint(u uint64, base int) string {
	if base < 2 || base > 36 {
		base = 10
	}
	if u == 0 {
		return "0"
	}
	var buf [64]byte
	i := len(buf)
	b := uint64(base)
	for u > 0 {
		i--
		buf[i] = digits[u%b]
		u /= b
	}
	return string(buf[i:])
}

// ---- Parsing ----

func ParseUint(s string, base, bitSize int) (uint64, error) {
	if base == 0 {
		base, s = inferBase(s)
	}
	if base < 2 || base > 36 || len(s) == 0 {
		return 0, ErrSyntax
	}

	if bitSize == 0 {
		bitSize = 32 // int width on RP2
	}
	max := uint64(1)<<64 - 1
	switch bitSize {
	case 64:
	case 8, 16, 32:
		max = uint64(1)<<uint(bitSize) - 1
	default:
		return 0, ErrSyntax
	}

	b := uint64(base)
	cutoff := max / b
	var v uint64
	for i := 0; i < len(s); i++ {
		d, ok := digitVal(s[i])
		if !ok || int(d) >= base {
			return 0, ErrSyntax
		}
		if v > cutoff || v*b > max-uint64(d) {
			return max, ErrRange
		}
		v = v*b + uint64(d)
	}
	return v, nil
}

func ParseInt(s string, base, bitSize int) (int64, error) {
	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	u, err := ParseUint(s, base, 64)
	if err != nil && err != ErrRange {
		return 0, err
	}

	if bitSize == 0 {
		bitSize = 32 // int width on RP2
	}
	limit := uint64(1) << uint(bitSize-1)
	if err == ErrRange || (!neg && u >= limit) || (neg && u > limit) {
		if neg {
			return -int64(limit), ErrRange
		}
		return int64(limit - 1), ErrRange
	}
	if neg {
		return -int64(u), nil
	}
	return int64(u), nil
}

func digitVal(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'z':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'Z':
		return c - 'A' + 10, true
	}
	return 0, false
}

// inferBase handles the base-0 prefixes the way strconv does, including
// bare leading-zero octal.
func inferBase(s string) (int, string) {
	if len(s) >= 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			return 16, s[2:]
		case 'b', 'B':
			return 2, s[2:]
		case 'o', 'O':
			return 8, s[2:]
		}
		return 8, s[1:]
	}
	return 10, s
}

// ---- Floats (decimal-basic) ----

func FormatFloat(f float64, _ byte, prec, _ int) string {
	if prec < 0 {
		prec = 6
	}
	neg := f < 0
	if neg {
		f = -f
	}
	ip := uint64(f)
	out := FormatUint(ip, 10)
	if prec > 0 {
		pow := 1.0
		for i := 0; i < prec; i++ {
			pow *= 10
		}
		fs := FormatUint(uint64((f-float64(ip))*pow+0.5), 10)
		for len(fs) < prec {
			fs = "0" + fs
		}
		out += "." + fs
	}
	if neg {
		return "-" + out
	}
	return out
}

func ParseFloat(s string, _ int) (float64, error) {
	if len(s) == 0 {
		return 0, ErrSyntax
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	var ip uint64
	i := 0
	for i < len(s) && '0' <= s[i] && s[i] <= '9' {
		ip = ip*10 + uint64(s[i]-'0')
		i++
	}
	var frac, scale float64 = 0, 1
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && '0' <= s[i] && s[i] <= '9' {
			frac = frac*10 + float64(s[i]-'0')
			scale *= 10
			i++
		}
	}
	if i != len(s) {
		return 0, ErrSyntax
	}
	v := float64(ip) + frac/scale
	if neg {
		v = -v
	}
	return v, nil
}
