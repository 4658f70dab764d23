package main

import (
	"runtime"
	"testing"
)

func TestParseHotkeyVariants(t *testing.T) {
	tests := []struct {
		name    string
		binding string
		mods    int
		wantErr bool
	}{
		{name: "ctrl+s", binding: "ctrl+s", mods: 1},
		{name: "control+shift+s", binding: "Control+Shift+S", mods: 2},
		{name: "alt+space", binding: "alt+space", mods: 1},
		{name: "bare letter", binding: "k"},
		{name: "missing key", binding: "ctrl", wantErr: true},
		{name: "unsupported key", binding: "ctrl+f13", wantErr: true},
		{name: "digit", binding: "ctrl+1", wantErr: true},
		{name: "empty", binding: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mods, key, err := parseHotkey(tc.binding)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseHotkey(%q) expected error", tc.binding)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseHotkey(%q) error: %v", tc.binding, err)
			}
			if key == 0 {
				t.Fatalf("parseHotkey(%q) returned empty key", tc.binding)
			}
			if len(mods) != tc.mods {
				t.Fatalf("parseHotkey(%q) mods = %d, want %d", tc.binding, len(mods), tc.mods)
			}
		})
	}
}

func TestHotkeyLetterKeyCodes(t *testing.T) {
	key, err := hotkeyLetterKey('s')
	if err != nil {
		t.Fatalf("hotkeyLetterKey: %v", err)
	}
	var want uint32
	switch runtime.GOOS {
	case "linux":
		want = 's'
	case "windows":
		want = 'S'
	case "darwin":
		want = 0x01
	default:
		t.Skipf("no letter codes on %s", runtime.GOOS)
	}
	if uint32(key) != want {
		t.Fatalf("key code = %#x, want %#x", uint32(key), want)
	}
}

func TestHotkeyCodeHelpers(t *testing.T) {
	if got := hotkeyModifierFromCode(123); uint32(got) != 123 {
		t.Fatalf("hotkeyModifierFromCode mismatch: got %d", got)
	}
	if got := hotkeyKeyFromCode(456); uint32(got) != 456 {
		t.Fatalf("hotkeyKeyFromCode mismatch: got %d", got)
	}
	for name, fn := range map[string]func() error{
		"ctrl":  func() error { _, err := hotkeyModifierCtrl(); return err },
		"shift": func() error { _, err := hotkeyModifierShift(); return err },
		"alt":   func() error { _, err := hotkeyModifierAlt(); return err },
		"space": func() error { _, err := hotkeySpaceKey(); return err },
	} {
		if err := fn(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
}
