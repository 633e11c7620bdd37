// Package hotkey parses human-readable key combinations such as
// "Ctrl+Shift+C" into a platform-neutral descriptor.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidHotkey is returned when a combo has no key or an unknown key.
var ErrInvalidHotkey = errors.New("invalid hotkey")

// Modifier is a bit set of modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModWin
)

// KeyCode identifies the non-modifier key. Letters and digits use their
// uppercase ASCII code; named keys use the fixed values below.
type KeyCode uint32

const (
	KeyInsert KeyCode = 0x2D
	KeyDelete KeyCode = 0x2E
	KeyF1     KeyCode = 0x70
	KeyF12    KeyCode = 0x7B
)

var namedKeys = map[string]KeyCode{
	"insert": KeyInsert, "delete": KeyDelete,
	"f1": KeyF1, "f2": 0x71, "f3": 0x72, "f4": 0x73,
	"f5": 0x74, "f6": 0x75, "f7": 0x76, "f8": 0x77,
	"f9": 0x78, "f10": 0x79, "f11": 0x7A, "f12": KeyF12,
}

// Descriptor is a parsed key combination.
type Descriptor struct {
	Modifiers Modifier
	Key       KeyCode
	Label     string
}

// Has reports whether m is part of the descriptor's modifier set.
func (d Descriptor) Has(m Modifier) bool {
	return d.Modifiers&m != 0
}

func (d Descriptor) String() string {
	return d.Label
}

// Parse parses combo. Tokens are split on '+', trimmed and matched
// case-insensitively; the last non-modifier token is the key.
func Parse(combo string) (Descriptor, error) {
	var (
		d   = Descriptor{Label: combo}
		key string
		has bool
	)

	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			d.Modifiers |= ModCtrl
		case "alt":
			d.Modifiers |= ModAlt
		case "shift":
			d.Modifiers |= ModShift
		case "win", "super":
			d.Modifiers |= ModWin
		default:
			key, has = part, true
		}
	}

	if !has || key == "" {
		return Descriptor{}, fmt.Errorf("%w: %q has no key", ErrInvalidHotkey, combo)
	}

	code, ok := keyCode(key)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: unsupported key %q", ErrInvalidHotkey, key)
	}
	d.Key = code

	return d, nil
}

// ParseOrDefault parses combo and falls back to fallback when combo is
// invalid. The returned error, if any, describes why combo was rejected.
func ParseOrDefault(combo, fallback string) (Descriptor, error) {
	d, err := Parse(combo)
	if err == nil {
		return d, nil
	}
	fb, fbErr := Parse(fallback)
	if fbErr != nil {
		return Descriptor{}, fmt.Errorf("fallback %q: %w", fallback, fbErr)
	}
	return fb, err
}

func keyCode(key string) (KeyCode, bool) {
	if len(key) == 1 {
		c := key[0]
		switch {
		case c >= 'a' && c <= 'z':
			return KeyCode(c - 'a' + 'A'), true
		case c >= '0' && c <= '9':
			return KeyCode(c), true
		}
	}

	code, ok := namedKeys[key]
	return code, ok
}
