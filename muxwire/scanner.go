package muxwire

// Scanner reassembles frames from an arbitrary byte stream. Feed chunks with
// Push, drain complete frames with Next. Garbage between frames is skipped
// by hunting for the signature; truncated or corrupt frames cost one skipped
// byte and a resync, never a stall.
//
// Single-goroutine use only.
type Scanner struct {
	buf []byte

	// Skipped counts bytes discarded while hunting for a signature.
	// Dropped counts frames rejected after a signature matched.
	Skipped uint64
	Dropped uint64
}

func NewScanner() *Scanner {
	return &Scanner{buf: make([]byte, 0, 4*FrameLen(MaxSamples))}
}

// Push appends raw stream bytes.
func (s *Scanner) Push(p []byte) {
	s.buf = append(s.buf, p...)
}

// Next returns the next complete valid frame, or ok=false when the buffered
// bytes hold none (call Push and retry).
func (s *Scanner) Next() (Frame, bool) {
	for {
		// Hunt for the signature.
		i := 0
		for i < len(s.buf) && !IsFrameStart(s.buf[i:]) {
			i++
		}
		if i > 0 {
			// A trailing lone 0xA7 may be half a signature; keep it.
			if i == len(s.buf) && i >= 1 && s.buf[i-1] == sigByte {
				i--
			}
			s.Skipped += uint64(i)
			s.buf = s.buf[:copy(s.buf, s.buf[i:])]
		}
		if len(s.buf) < headerLen {
			return Frame{}, false
		}

		f, n, err := Unmarshal(s.buf)
		switch err {
		case nil:
			s.buf = s.buf[:copy(s.buf, s.buf[n:])]
			return f, true
		case ErrShort:
			return Frame{}, false
		default:
			// Corrupt after a matched signature: drop one byte and resync.
			s.Dropped++
			s.Skipped++
			s.buf = s.buf[:copy(s.buf, s.buf[1:])]
		}
	}
}
