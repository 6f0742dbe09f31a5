package hotkey

import (
	"reflect"
	"testing"
)

func TestParseCanonicalTokens(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Ctrl+Alt+1", []string{"ctrl", "alt", "1"}},
		{"Ctrl+Shift+F1", []string{"ctrl", "shift", "f1"}},
		{"Super+A", []string{"super", "a"}},
		{"Control+X", []string{"ctrl", "x"}},
		{"Win+Tab", []string{"super", "tab"}},
		{"cmd+space", []string{"super", "space"}},
		{" Ctrl + Alt + T ", []string{"ctrl", "alt", "t"}},
	}
	for _, tt := range tests {
		got := Parse(tt.in).Tokens()
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComboRoundTrip(t *testing.T) {
	for _, combo := range []string{"Ctrl+Alt+1", "Ctrl+Shift+F1", "Super+A", "Alt+F12", "Shift+Z"} {
		if got := Parse(combo).String(); got != combo {
			t.Errorf("round trip of %q = %q", combo, got)
		}
	}
}

func TestStringCanonicalizesAliases(t *testing.T) {
	if got := Parse("control+win+x").String(); got != "Ctrl+Super+X" {
		t.Errorf("got %q, want Ctrl+Super+X", got)
	}
}

func TestSplit(t *testing.T) {
	mods, key, err := Parse("Ctrl+Shift+F1").Split()
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !reflect.DeepEqual(mods, []string{"ctrl", "shift"}) {
		t.Errorf("modifiers = %v", mods)
	}
	if key != "f1" {
		t.Errorf("key = %q", key)
	}
}

func TestSplitRejectsModifierOnly(t *testing.T) {
	if _, _, err := Parse("Ctrl+Shift").Split(); err == nil {
		t.Fatal("expected error for combo without a key")
	}
}

func TestSplitRejectsMultipleKeys(t *testing.T) {
	if _, _, err := Parse("Ctrl+A+B").Split(); err == nil {
		t.Fatal("expected error for combo with two keys")
	}
}

func TestIsZero(t *testing.T) {
	if !Parse("").IsZero() {
		t.Error("empty string should parse to a zero combo")
	}
	if Parse("A").IsZero() {
		t.Error("single-key combo should not be zero")
	}
}
