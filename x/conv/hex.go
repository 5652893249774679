// Package conv holds byte-level render helpers shared by the host tools and
// the bench console.
package conv

const hexDigits = "0123456789ABCDEF"

// AppendHex appends p to dst as space-separated uppercase hex pairs, the
// layout the frame dump commands print.
func AppendHex(dst, p []byte) []byte {
	for i, b := range p {
		if i > 0 {
			dst = append(dst, ' ')
		}
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
	}
	return dst
}
