package strconvx

import "testing"

// Both variants must agree with strconv on everything here; the cases
// deliberately avoid underscore separators and exponent floats, which the
// MCU build does not support.

func TestItoaAtoiRoundTrip(t *testing.T) {
	for _, v := range []int{0, 1, -1, 42, -99999, 1 << 20} {
		got, err := Atoi(Itoa(v))
		if err != nil {
			t.Fatalf("Atoi(Itoa(%d)): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip %d -> %d", v, got)
		}
	}
}

func TestFormatBases(t *testing.T) {
	cases := []struct {
		u    uint64
		base int
		want string
	}{
		{0, 2, "0"},
		{5, 2, "101"},
		{255, 16, "ff"},
		{255, 10, "255"},
		{35, 36, "z"},
	}
	for _, c := range cases {
		if got := FormatUint(c.u, c.base); got != c.want {
			t.Errorf("FormatUint(%d, %d) = %q, want %q", c.u, c.base, got, c.want)
		}
	}
	if got := FormatInt(-15, 10); got != "-15" {
		t.Errorf("FormatInt(-15, 10) = %q", got)
	}
	if got := FormatInt(-255, 16); got != "-ff" {
		t.Errorf("FormatInt(-255, 16) = %q", got)
	}
}

func TestParseUintBaseInference(t *testing.T) {
	cases := []struct {
		s    string
		base int
		want uint64
	}{
		{"0", 0, 0},
		{"101", 2, 5},
		{"0b101", 0, 5},
		{"0o77", 0, 63},
		{"0O77", 0, 63},
		{"075", 0, 61}, // bare leading zero is octal, as in strconv
		{"0xff", 0, 255},
		{"0Xff", 0, 255},
		{"FF", 16, 255},
	}
	for _, c := range cases {
		got, err := ParseUint(c.s, c.base, 64)
		if err != nil {
			t.Fatalf("ParseUint(%q, %d): %v", c.s, c.base, err)
		}
		if got != c.want {
			t.Errorf("ParseUint(%q, %d) = %d, want %d", c.s, c.base, got, c.want)
		}
	}
}

func TestParseUintRejects(t *testing.T) {
	for _, s := range []string{"", "g", "0x", "2", "0b102"} {
		if _, err := ParseUint(s, 2, 64); err == nil {
			t.Errorf("ParseUint(%q, 2) accepted", s)
		}
	}
}

func TestParseUintRangeClamps(t *testing.T) {
	got, err := ParseUint("300", 10, 8)
	if err == nil {
		t.Fatal("ParseUint(300, 8-bit) accepted")
	}
	if got != 255 {
		t.Fatalf("clamped value = %d, want 255", got)
	}
}

func TestParseIntSignsAndWidths(t *testing.T) {
	cases := []struct {
		s       string
		base    int
		bitSize int
		want    int64
	}{
		{"+10", 10, 64, 10},
		{"-10", 10, 64, -10},
		{"0b11", 0, 64, 3},
		{"-0x0f", 0, 64, -15},
		{"127", 10, 8, 127},
		{"-128", 10, 8, -128},
	}
	for _, c := range cases {
		got, err := ParseInt(c.s, c.base, c.bitSize)
		if err != nil {
			t.Fatalf("ParseInt(%q, %d, %d): %v", c.s, c.base, c.bitSize, err)
		}
		if got != c.want {
			t.Errorf("ParseInt(%q, %d, %d) = %d, want %d", c.s, c.base, c.bitSize, got, c.want)
		}
	}

	if got, err := ParseInt("128", 10, 8); err == nil || got != 127 {
		t.Errorf("ParseInt(128, 8-bit) = %d, %v; want 127 with range error", got, err)
	}
	if _, err := ParseInt("18446744073709551615", 10, 64); err == nil {
		t.Error("ParseInt(maxUint64) accepted as signed")
	}
}

func TestFormatFloatBasic(t *testing.T) {
	cases := []struct {
		in   float64
		prec int
		want string
	}{
		{0, 0, "0"},
		{12.3, 1, "12.3"},
		{12.346, 2, "12.35"},
		{-1.25, 2, "-1.25"},
	}
	for _, c := range cases {
		if got := FormatFloat(c.in, 'f', c.prec, 64); got != c.want {
			t.Errorf("FormatFloat(%v, 'f', %d) = %q, want %q", c.in, c.prec, got, c.want)
		}
	}
}

func TestParseFloatBasic(t *testing.T) {
	cases := []struct {
		s    string
		want float64
	}{
		{"12.5", 12.5},
		{"-0.25", -0.25},
		{"3", 3},
	}
	for _, c := range cases {
		got, err := ParseFloat(c.s, 64)
		if err != nil {
			t.Fatalf("ParseFloat(%q): %v", c.s, err)
		}
		if got != c.want {
			t.Errorf("ParseFloat(%q) = %v, want %v", c.s, got, c.want)
		}
	}
	if _, err := ParseFloat("12.3.4", 64); err == nil {
		t.Error("ParseFloat(12.3.4) accepted")
	}
}
