package muxwire

import (
	"bytes"
	"testing"
)

func mustMarshal(t *testing.T, seq uint8, samples []uint16) []byte {
	t.Helper()
	b, err := Marshal(nil, seq, samples)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return b
}

func TestMarshalLayout(t *testing.T) {
	b := mustMarshal(t, 7, []uint16{0x0123, 0x0FFF})

	if got, want := len(b), FrameLen(2); got != want {
		t.Fatalf("len=%d want %d", got, want)
	}
	want := []byte{0xA7, 0xA7, 0x01, 7, 2, 0x23, 0x01, 0xFF, 0x0F}
	if !bytes.Equal(b[:len(b)-1], want) {
		t.Fatalf("frame=% X want % X +sum", b[:len(b)-1], want)
	}
	var sum byte
	for _, x := range b[2 : len(b)-1] {
		sum ^= x
	}
	if b[len(b)-1] != sum {
		t.Fatalf("checksum=%#x want %#x", b[len(b)-1], sum)
	}
}

func TestMarshalBounds(t *testing.T) {
	if _, err := Marshal(nil, 0, nil); err != ErrNoSamples {
		t.Fatalf("empty: %v", err)
	}
	if _, err := Marshal(nil, 0, make([]uint16, MaxSamples+1)); err != ErrTooManySamples {
		t.Fatalf("oversize: %v", err)
	}
	if _, err := Marshal(nil, 0, make([]uint16, MaxSamples)); err != nil {
		t.Fatalf("full frame: %v", err)
	}
}

func TestMarshalAppendsWithoutClobbering(t *testing.T) {
	prefix := []byte{0xDE, 0xAD}
	b, err := Marshal(prefix, 1, []uint16{42})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b[:2], prefix) {
		t.Fatalf("prefix clobbered: % X", b[:2])
	}
	f, n, err := Unmarshal(b[2:])
	if err != nil || n != FrameLen(1) || f.Samples[0] != 42 {
		t.Fatalf("decode after prefix: f=%+v n=%d err=%v", f, n, err)
	}
}

func TestUnmarshalRoundTrip(t *testing.T) {
	samples := []uint16{0, 1, 512, 4095, 0xFFFF}
	b := mustMarshal(t, 200, samples)

	f, n, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if n != len(b) {
		t.Fatalf("consumed %d want %d", n, len(b))
	}
	if f.Seq != 200 {
		t.Fatalf("seq=%d", f.Seq)
	}
	if len(f.Samples) != len(samples) {
		t.Fatalf("count=%d", len(f.Samples))
	}
	for i := range samples {
		if f.Samples[i] != samples[i] {
			t.Fatalf("sample[%d]=%d want %d", i, f.Samples[i], samples[i])
		}
	}
}

func TestUnmarshalRejects(t *testing.T) {
	good := mustMarshal(t, 3, []uint16{100, 200})

	if _, _, err := Unmarshal(good[:3]); err != ErrShort {
		t.Fatalf("short header: %v", err)
	}
	if _, _, err := Unmarshal(good[:len(good)-1]); err != ErrShort {
		t.Fatalf("truncated body: %v", err)
	}

	bad := append([]byte(nil), good...)
	bad[0] = 0x00
	if _, _, err := Unmarshal(bad); err != ErrBadSignature {
		t.Fatalf("signature: %v", err)
	}

	bad = append([]byte(nil), good...)
	bad[2] = 0x02
	if _, _, err := Unmarshal(bad); err != ErrBadVersion {
		t.Fatalf("version: %v", err)
	}

	bad = append([]byte(nil), good...)
	bad[5] ^= 0x40 // flip a sample bit
	if _, _, err := Unmarshal(bad); err != ErrBadChecksum {
		t.Fatalf("checksum: %v", err)
	}

	bad = append([]byte(nil), good...)
	bad[4] = 0
	if _, _, err := Unmarshal(bad); err != ErrNoSamples {
		t.Fatalf("zero count: %v", err)
	}
}

func TestScannerSplitAndGarbage(t *testing.T) {
	f1 := mustMarshal(t, 1, []uint16{10, 20, 30})
	f2 := mustMarshal(t, 2, []uint16{40})

	stream := append([]byte{0x00, 0x55, 0xA7, 0x13}, f1...) // noise incl. lone 0xA7
	stream = append(stream, f2...)

	s := NewScanner()
	// Feed in 3-byte chunks to exercise partial frames.
	for i := 0; i < len(stream); i += 3 {
		end := i + 3
		if end > len(stream) {
			end = len(stream)
		}
		s.Push(stream[i:end])
	}

	f, ok := s.Next()
	if !ok || f.Seq != 1 || len(f.Samples) != 3 || f.Samples[2] != 30 {
		t.Fatalf("first frame: %+v ok=%v", f, ok)
	}
	f, ok = s.Next()
	if !ok || f.Seq != 2 || f.Samples[0] != 40 {
		t.Fatalf("second frame: %+v ok=%v", f, ok)
	}
	if _, ok := s.Next(); ok {
		t.Fatal("unexpected third frame")
	}
	if s.Skipped != 4 {
		t.Fatalf("skipped=%d want 4", s.Skipped)
	}
}

func TestScannerResyncAfterCorruption(t *testing.T) {
	f1 := mustMarshal(t, 9, []uint16{111, 222})
	f1[6] ^= 0xFF // corrupt a sample byte, checksum now fails
	f2 := mustMarshal(t, 10, []uint16{333})

	s := NewScanner()
	s.Push(f1)
	s.Push(f2)

	f, ok := s.Next()
	if !ok || f.Seq != 10 || f.Samples[0] != 333 {
		t.Fatalf("resync frame: %+v ok=%v", f, ok)
	}
	if s.Dropped == 0 {
		t.Fatal("expected a dropped frame")
	}
}

func TestScannerHoldsPartialFrame(t *testing.T) {
	b := mustMarshal(t, 5, []uint16{1, 2, 3, 4})

	s := NewScanner()
	s.Push(b[:len(b)-1])
	if _, ok := s.Next(); ok {
		t.Fatal("frame surfaced before final byte")
	}
	s.Push(b[len(b)-1:])
	f, ok := s.Next()
	if !ok || f.Seq != 5 || len(f.Samples) != 4 {
		t.Fatalf("completed frame: %+v ok=%v", f, ok)
	}
}
