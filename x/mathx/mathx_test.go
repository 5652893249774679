package mathx

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 10); got != 5 {
		t.Errorf("Clamp(5, 0, 10) = %d", got)
	}
	if got := Clamp(-3, 0, 10); got != 0 {
		t.Errorf("Clamp(-3, 0, 10) = %d", got)
	}
	if got := Clamp(42, 0, 10); got != 10 {
		t.Errorf("Clamp(42, 0, 10) = %d", got)
	}
	// Reversed bounds clamp the same way.
	if got := Clamp(42, 10, 0); got != 10 {
		t.Errorf("Clamp(42, 10, 0) = %d", got)
	}
	if got := Clamp(uint16(700), uint16(0), uint16(512)); got != 512 {
		t.Errorf("Clamp(u16 700, 0, 512) = %d", got)
	}
}

func TestBetween(t *testing.T) {
	if !Between(5, 0, 10) {
		t.Error("Between(5, 0, 10) = false")
	}
	if Between(11, 0, 10) {
		t.Error("Between(11, 0, 10) = true")
	}
	// Bounds are inclusive.
	if !Between(0, 0, 10) || !Between(10, 0, 10) {
		t.Error("Between excludes its bounds")
	}
	if !Between(5, 10, 0) {
		t.Error("Between(5, 10, 0) = false with reversed bounds")
	}
}

func TestMinMax(t *testing.T) {
	if got := Min(3, 7); got != 3 {
		t.Errorf("Min(3, 7) = %d", got)
	}
	if got := Max(3, 7); got != 7 {
		t.Errorf("Max(3, 7) = %d", got)
	}
	if got := Min("pear", "apple"); got != "apple" {
		t.Errorf("Min(pear, apple) = %q", got)
	}
	if got := Max(uint32(1), uint32(0)); got != 1 {
		t.Errorf("Max(u32 1, 0) = %d", got)
	}
}
