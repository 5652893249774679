// Package muxwire is the wire format for streaming multiplexer sweeps off
// the board: a tiny framed binary layout cheap enough to emit from firmware
// and robust enough to resynchronise on a lossy serial link.
//
// Frame layout (little-endian):
//
//	[0]  0xA7  signature
//	[1]  0xA7  signature
//	[2]  version (currently 0x01)
//	[3]  seq (wrapping sweep counter)
//	[4]  count (number of samples, 1..16)
//	[5+2i] sample i low byte
//	[6+2i] sample i high byte
//	[5+2*count] checksum: XOR of bytes [2 .. 5+2*count)
//
// No reflection, no allocation on the encode path.
package muxwire

import "errors"

const (
	sigByte byte = 0xA7

	// Version is the frame layout revision carried in byte 2.
	Version byte = 0x01

	// MaxSamples matches the channel count of the multiplexer package.
	MaxSamples = 16

	headerLen = 5 // sig sig ver seq count
)

var (
	ErrTooManySamples = errors.New("muxwire: more than 16 samples")
	ErrNoSamples      = errors.New("muxwire: empty frame")
	ErrShort          = errors.New("muxwire: short buffer")
	ErrBadSignature   = errors.New("muxwire: bad signature")
	ErrBadVersion     = errors.New("muxwire: unsupported version")
	ErrBadChecksum    = errors.New("muxwire: checksum mismatch")
)

// Frame is one decoded sweep.
type Frame struct {
	Seq     uint8
	Samples []uint16
}

// FrameLen returns the encoded size of a frame carrying count samples.
func FrameLen(count int) int { return headerLen + 2*count + 1 }

// IsFrameStart reports whether p begins with the two signature bytes.
func IsFrameStart(p []byte) bool {
	return len(p) >= 2 && p[0] == sigByte && p[1] == sigByte
}

// Marshal appends one encoded frame to dst and returns the extended slice.
// With cap(dst) >= len(dst)+FrameLen(len(samples)) it does not allocate.
func Marshal(dst []byte, seq uint8, samples []uint16) ([]byte, error) {
	if len(samples) == 0 {
		return dst, ErrNoSamples
	}
	if len(samples) > MaxSamples {
		return dst, ErrTooManySamples
	}
	start := len(dst)
	dst = append(dst, sigByte, sigByte, Version, seq, byte(len(samples)))
	for _, s := range samples {
		dst = append(dst, byte(s), byte(s>>8))
	}
	var sum byte
	for _, b := range dst[start+2:] {
		sum ^= b
	}
	return append(dst, sum), nil
}

// Unmarshal decodes one frame from the start of p. It returns the frame and
// the number of bytes consumed. The returned Samples slice is freshly
// allocated; p may be reused.
func Unmarshal(p []byte) (Frame, int, error) {
	if len(p) < headerLen {
		return Frame{}, 0, ErrShort
	}
	if !IsFrameStart(p) {
		return Frame{}, 0, ErrBadSignature
	}
	if p[2] != Version {
		return Frame{}, 0, ErrBadVersion
	}
	count := int(p[4])
	if count == 0 {
		return Frame{}, 0, ErrNoSamples
	}
	if count > MaxSamples {
		return Frame{}, 0, ErrTooManySamples
	}
	n := FrameLen(count)
	if len(p) < n {
		return Frame{}, 0, ErrShort
	}
	var sum byte
	for _, b := range p[2 : n-1] {
		sum ^= b
	}
	if sum != p[n-1] {
		return Frame{}, 0, ErrBadChecksum
	}
	f := Frame{Seq: p[3], Samples: make([]uint16, count)}
	for i := 0; i < count; i++ {
		lo := p[headerLen+2*i]
		hi := p[headerLen+2*i+1]
		f.Samples[i] = uint16(lo) | uint16(hi)<<8
	}
	return f, n, nil
}
