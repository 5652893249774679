package conv

import "testing"

func TestAppendHex(t *testing.T) {
	cases := []struct {
		in   []byte
		want string
	}{
		{nil, ""},
		{[]byte{0x00}, "00"},
		{[]byte{0xDE, 0xAD, 0x01}, "DE AD 01"},
	}
	for _, c := range cases {
		if got := string(AppendHex(nil, c.in)); got != c.want {
			t.Errorf("AppendHex(%v) = %q, want %q", c.in, got, c.want)
		}
	}

	// Appends after existing content instead of replacing it.
	dst := []byte("frame: ")
	if got := string(AppendHex(dst, []byte{0x0F})); got != "frame: 0F" {
		t.Errorf("AppendHex onto prefix = %q", got)
	}
}
