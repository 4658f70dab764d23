package main

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.design/x/hotkey"
)

type skipHotkey struct {
	hk *hotkey.Hotkey
}

var newSkipHotkey = func(binding string) (keyListener, error) {
	mods, key, err := parseHotkey(binding)
	if err != nil {
		return nil, err
	}
	return &skipHotkey{hk: hotkey.New(mods, key)}, nil
}

type keyListener interface {
	Run(ctx context.Context, onPress func()) error
}

func (h *skipHotkey) Run(ctx context.Context, onPress func()) error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	defer h.hk.Unregister()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.hk.Keydown():
			if onPress != nil {
				onPress()
			}
		case <-h.hk.Keyup():
		}
	}
}

func parseHotkey(binding string) ([]hotkey.Modifier, hotkey.Key, error) {
	binding = strings.TrimSpace(strings.ToLower(binding))
	if binding == "" {
		return nil, 0, fmt.Errorf("hotkey binding is required")
	}

	parts := strings.Split(binding, "+")
	mods := make([]hotkey.Modifier, 0, len(parts))
	var key hotkey.Key
	hasKey := false

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			mod, err := hotkeyModifierCtrl()
			if err != nil {
				return nil, 0, err
			}
			mods = append(mods, mod)
		case "shift":
			mod, err := hotkeyModifierShift()
			if err != nil {
				return nil, 0, err
			}
			mods = append(mods, mod)
		case "alt", "option":
			mod, err := hotkeyModifierAlt()
			if err != nil {
				return nil, 0, err
			}
			mods = append(mods, mod)
		case "space":
			spaceKey, err := hotkeySpaceKey()
			if err != nil {
				return nil, 0, err
			}
			key = spaceKey
			hasKey = true
		default:
			if len(part) != 1 || part[0] < 'a' || part[0] > 'z' {
				return nil, 0, fmt.Errorf("unsupported key: %s", part)
			}
			letter, err := hotkeyLetterKey(part[0])
			if err != nil {
				return nil, 0, err
			}
			key = letter
			hasKey = true
		}
	}
	if !hasKey {
		return nil, 0, fmt.Errorf("missing key")
	}
	return mods, key, nil
}

func hotkeyModifierCtrl() (hotkey.Modifier, error) {
	switch runtime.GOOS {
	case "linux":
		return hotkeyModifierFromCode(1 << 2), nil
	case "darwin":
		return hotkeyModifierFromCode(0x1000), nil
	case "windows":
		return hotkeyModifierFromCode(0x2), nil
	default:
		return 0, fmt.Errorf("hotkey ctrl modifier is unsupported on %s", runtime.GOOS)
	}
}

func hotkeyModifierShift() (hotkey.Modifier, error) {
	switch runtime.GOOS {
	case "linux":
		return hotkeyModifierFromCode(1 << 0), nil
	case "darwin":
		return hotkeyModifierFromCode(0x200), nil
	case "windows":
		return hotkeyModifierFromCode(0x4), nil
	default:
		return 0, fmt.Errorf("hotkey shift modifier is unsupported on %s", runtime.GOOS)
	}
}

func hotkeyModifierAlt() (hotkey.Modifier, error) {
	switch runtime.GOOS {
	case "linux":
		return hotkeyModifierFromCode(1 << 3), nil
	case "darwin":
		return hotkeyModifierFromCode(0x800), nil
	case "windows":
		return hotkeyModifierFromCode(0x1), nil
	default:
		return 0, fmt.Errorf("hotkey alt modifier is unsupported on %s", runtime.GOOS)
	}
}

func hotkeySpaceKey() (hotkey.Key, error) {
	switch runtime.GOOS {
	case "linux", "windows":
		return hotkeyKeyFromCode(0x20), nil
	case "darwin":
		return hotkeyKeyFromCode(49), nil
	default:
		return 0, fmt.Errorf("hotkey space key is unsupported on %s", runtime.GOOS)
	}
}

// darwinLetters are the ANSI virtual key codes for a..z.
var darwinLetters = [26]uint32{
	0x00, 0x0B, 0x08, 0x02, 0x0E, 0x03, 0x05, 0x04, 0x22, 0x26, 0x28, 0x25, 0x2E,
	0x2D, 0x1F, 0x23, 0x0C, 0x0F, 0x01, 0x11, 0x20, 0x09, 0x0D, 0x07, 0x10, 0x06,
}

func hotkeyLetterKey(letter byte) (hotkey.Key, error) {
	switch runtime.GOOS {
	case "linux":
		return hotkeyKeyFromCode(uint32(letter)), nil
	case "windows":
		return hotkeyKeyFromCode(uint32(letter - 'a' + 'A')), nil
	case "darwin":
		return hotkeyKeyFromCode(darwinLetters[letter-'a']), nil
	default:
		return 0, fmt.Errorf("hotkey letter keys are unsupported on %s", runtime.GOOS)
	}
}

func hotkeyModifierFromCode(code uint32) hotkey.Modifier {
	return hotkey.Modifier(code)
}

func hotkeyKeyFromCode(code uint32) hotkey.Key {
	return hotkey.Key(code)
}
