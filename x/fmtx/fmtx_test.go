package fmtx

import (
	"bytes"
	"errors"
	"testing"
)

// Every expectation here must hold for both the hosted fmt delegation and
// the MCU formatter, so the cases stay inside the shared verb subset.

func TestSprintfVerbs(t *testing.T) {
	cases := []struct {
		format string
		args   []any
		want   string
	}{
		{"hello %s", []any{"world"}, "hello world"},
		{"b=%s", []any{[]byte("hi")}, "b=hi"},
		{"num %d hex %x HEX %X", []any{255, 255, 255}, "num 255 hex ff HEX FF"},
		{"neg %d %x", []any{-42, -255}, "neg -42 -ff"},
		{"u=%d", []any{uint16(65535)}, "u=65535"},
		{"bool %t %t", []any{true, false}, "bool true false"},
		{"literal 100%%", nil, "literal 100%"},
		{"q=%q", []any{`a"b\c`}, `q="a\"b\\c"`},
		{"v=%v %v", []any{123, true}, "v=123 true"},
		{"n=%v", []any{nil}, "n=<nil>"},
		{"trim %.3s", []any{"abcdef"}, "trim abc"},
		{"[%5s]", []any{"ab"}, "[   ab]"},
		{"[%5d]", []any{42}, "[   42]"},
		{"%d %d", []any{7}, "7 %!d(MISSING)"},
	}
	for _, c := range cases {
		if got := Sprintf(c.format, c.args...); got != c.want {
			t.Errorf("Sprintf(%q, %v) = %q, want %q", c.format, c.args, got, c.want)
		}
	}
}

func TestSprintfErrorOperand(t *testing.T) {
	err := errors.New("boom")
	if got := Sprintf("failed: %v", err); got != "failed: boom" {
		t.Errorf("%%v of error = %q", got)
	}
	if got := Sprintf("failed: %s", err); got != "failed: boom" {
		t.Errorf("%%s of error = %q", got)
	}
}

func TestSprintSpacing(t *testing.T) {
	// Spaces only between operands when neither is a string.
	cases := []struct {
		args []any
		want string
	}{
		{[]any{1, 2}, "1 2"},
		{[]any{"a", "b"}, "ab"},
		{[]any{"n=", 42}, "n=42"},
		{[]any{1, "x", 2}, "1x2"},
		{[]any{true, false}, "true false"},
	}
	for _, c := range cases {
		if got := Sprint(c.args...); got != c.want {
			t.Errorf("Sprint(%v) = %q, want %q", c.args, got, c.want)
		}
	}
}

func TestPrintRedirect(t *testing.T) {
	var buf bytes.Buffer
	old := DefaultOutput
	DefaultOutput = &buf
	t.Cleanup(func() { DefaultOutput = old })

	n, err := Print("x")
	if err != nil || n != 1 {
		t.Fatalf("Print = (%d, %v)", n, err)
	}
	if buf.String() != "x" {
		t.Fatalf("Print wrote %q", buf.String())
	}

	buf.Reset()
	if _, err := Printf("v=%d", 7); err != nil {
		t.Fatalf("Printf: %v", err)
	}
	if buf.String() != "v=7" {
		t.Fatalf("Printf wrote %q", buf.String())
	}
}

func TestFprintf(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Fprintf(&buf, "hi %s", "there"); err != nil {
		t.Fatalf("Fprintf: %v", err)
	}
	if buf.String() != "hi there" {
		t.Fatalf("Fprintf wrote %q", buf.String())
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf("bad %s: %d", "thing", 3)
	if err == nil {
		t.Fatal("Errorf returned nil")
	}
	if err.Error() != "bad thing: 3" {
		t.Fatalf("Errorf = %q", err.Error())
	}
}
