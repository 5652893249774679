//go:build rp2040 || rp2350

// Package fmtx is a reflection-free slice of the fmt API for MCU images.
// Hosted builds delegate to fmt; this variant hand-formats the verbs the
// firmware actually uses: %s %q %d %x %X %t %v and %%, with width padding
// and string precision. Operands a verb cannot take render as %!<verb>(?)
// so a bad format string shows up on the wire instead of vanishing.
package fmtx

import (
	"io"
	"unicode/utf8"

	"sensorcode-go/x/strconvx"
)

// DefaultOutput receives Print and Printf output. Firmware bootstrap points
// it at a UART writer; until then output is dropped.
var DefaultOutput io.Writer = discard{}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func Sprintf(format string, a ...any) string {
	return string(appendFormat(nil, format, a))
}

func Printf(format string, a ...any) (int, error) {
	return DefaultOutput.Write(appendFormat(nil, format, a))
}

func Fprintf(w io.Writer, format string, a ...any) (int, error) {
	return w.Write(appendFormat(nil, format, a))
}

func Errorf(format string, a ...any) error {
	return &formatError{string(appendFormat(nil, format, a))}
}

// Sprint follows fmt's spacing rule: a space separates two operands only
// when neither of them is a string.
func Sprint(a ...any) string {
	var b []byte
	for i, v := range a {
		if i > 0 && !isString(a[i-1]) && !isString(v) {
			b = append(b, ' ')
		}
		b = appendValue(b, v, 'v')
	}
	return string(b)
}

func Fprint(w io.Writer, a ...any) (int, error) {
	return w.Write([]byte(Sprint(a...)))
}

func Print(a ...any) (int, error) { return Fprint(DefaultOutput, a...) }

type formatError struct{ s string }

func (e *formatError) Error() string { return e.s }

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func appendFormat(dst []byte, format string, args []any) []byte {
	arg := 0
	for i := 0; i < len(format); {
		c := format[i]
		if c != '%' {
			dst = append(dst, c)
			i++
			continue
		}
		i++
		if i < len(format) && format[i] == '%' {
			dst = append(dst, '%')
			i++
			continue
		}
		var width, prec int
		width, i = number(format, i)
		prec = -1
		if i < len(format) && format[i] == '.' {
			prec, i = number(format, i+1)
			if prec < 0 {
				prec = 0
			}
		}
		if i >= len(format) {
			return dst
		}
		verb := format[i]
		i++
		if arg >= len(args) {
			dst = append(dst, '%', '!', verb)
			dst = append(dst, "(MISSING)"...)
			continue
		}
		mark := len(dst)
		dst = appendVerb(dst, verb, args[arg], prec)
		arg++
		if width > 0 {
			dst = padLeft(dst, mark, width)
		}
	}
	return dst
}

// padLeft right-aligns dst[mark:] in a field of the given rune width.
func padLeft(dst []byte, mark, width int) []byte {
	pad := width - utf8.RuneCount(dst[mark:])
	if pad <= 0 {
		return dst
	}
	for j := 0; j < pad; j++ {
		dst = append(dst, 0)
	}
	copy(dst[mark+pad:], dst[mark:])
	for j := 0; j < pad; j++ {
		dst[mark+j] = ' '
	}
	return dst
}

func appendVerb(dst []byte, verb byte, v any, prec int) []byte {
	switch verb {
	case 's', 'q':
		s, ok := stringArg(v)
		if !ok {
			return appendValue(dst, v, verb)
		}
		if prec >= 0 && prec < len(s) {
			s = s[:prec]
		}
		if verb == 'q' {
			return appendQuoted(dst, s)
		}
		return append(dst, s...)
	case 'd':
		return appendIntVerb(dst, v, 10, false, verb)
	case 'x':
		return appendIntVerb(dst, v, 16, false, verb)
	case 'X':
		return appendIntVerb(dst, v, 16, true, verb)
	case 't':
		if b, ok := v.(bool); ok {
			return appendBool(dst, b)
		}
		return appendBad(dst, verb)
	case 'v':
		return appendValue(dst, v, 'v')
	default:
		return appendBad(dst, verb)
	}
}

// appendValue is the %v dispatcher. Errors and Stringers print via their
// methods, the same preference order fmt uses.
func appendValue(dst []byte, v any, verb byte) []byte {
	if v == nil {
		return append(dst, "<nil>"...)
	}
	switch x := v.(type) {
	case string:
		if verb == 'q' {
			return appendQuoted(dst, x)
		}
		return append(dst, x...)
	case []byte:
		if verb == 'q' {
			return appendQuoted(dst, string(x))
		}
		return append(dst, x...)
	case bool:
		return appendBool(dst, x)
	case float32:
		return append(dst, strconvx.FormatFloat(float64(x), 'f', 6, 32)...)
	case float64:
		return append(dst, strconvx.FormatFloat(x, 'f', 6, 64)...)
	case error:
		return append(dst, x.Error()...)
	case interface{ String() string }:
		return append(dst, x.String()...)
	}
	if mag, neg, ok := splitInt(v); ok {
		if neg {
			dst = append(dst, '-')
		}
		return append(dst, strconvx.FormatUint(mag, 10)...)
	}
	return appendBad(dst, verb)
}

func appendIntVerb(dst []byte, v any, base int, upper bool, verb byte) []byte {
	mag, neg, ok := splitInt(v)
	if !ok {
		return appendBad(dst, verb)
	}
	if neg {
		dst = append(dst, '-')
	}
	s := strconvx.FormatUint(mag, base)
	if upper {
		return appendUpper(dst, s)
	}
	return append(dst, s...)
}

// splitInt normalises any integer kind into magnitude and sign. MinInt64
// negates cleanly through two's complement.
func splitInt(v any) (mag uint64, neg, ok bool) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		return uint64(x), false, true
	case uint8:
		return uint64(x), false, true
	case uint16:
		return uint64(x), false, true
	case uint32:
		return uint64(x), false, true
	case uint64:
		return x, false, true
	default:
		return 0, false, false
	}
	if n < 0 {
		return uint64(-n), true, true
	}
	return uint64(n), false, true
}

func stringArg(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return "", false
}

// appendQuoted is a minimal %q: escape quote, backslash and the common
// control characters, pass everything else through untouched.
func appendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			dst = append(dst, '\\', c)
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}

func appendUpper(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'a' <= c && c <= 'f' {
			c -= 'a' - 'A'
		}
		dst = append(dst, c)
	}
	return dst
}

func appendBool(dst []byte, b bool) []byte {
	if b {
		return append(dst, "true"...)
	}
	return append(dst, "false"...)
}

// appendBad marks a verb/operand mismatch the way fmt does, minus the type
// name reflection would provide.
func appendBad(dst []byte, verb byte) []byte {
	dst = append(dst, '%', '!', verb)
	return append(dst, "(?)"...)
}

// number scans an optional decimal at s[i:], returning -1 when absent.
func number(s string, i int) (int, int) {
	n, found := 0, false
	for i < len(s) && '0' <= s[i] && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		i++
		found = true
	}
	if !found {
		return -1, i
	}
	return n, i
}
