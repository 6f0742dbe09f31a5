package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Combo is a key combination as an ordered list of lowercase tokens,
// e.g. ["ctrl", "alt", "1"]. Modifier aliases are canonicalized at
// parse time; unrecognized multi-character tokens pass through
// unchanged as generic special-key tokens.
type Combo struct {
	tokens []string
}

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"shift":   "shift",
	"super":   "super",
	"win":     "super",
	"cmd":     "super",
}

// Parse converts a human-readable combo string like "Ctrl+Alt+1" to its
// canonical token form. Parsing is case-insensitive.
func Parse(combo string) Combo {
	parts := strings.Split(combo, "+")
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if canonical, ok := modifierAliases[part]; ok {
			tokens = append(tokens, canonical)
			continue
		}
		tokens = append(tokens, part)
	}
	return Combo{tokens: tokens}
}

// String renders the canonical capitalized form, e.g. "Ctrl+Alt+1".
// Round-tripping Parse and String is stable for modifier aliases and
// function keys, though not for arbitrary special-key tokens.
func (c Combo) String() string {
	parts := make([]string, len(c.tokens))
	for i, tok := range c.tokens {
		parts[i] = capitalizeToken(tok)
	}
	return strings.Join(parts, "+")
}

func capitalizeToken(tok string) string {
	if isFunctionKey(tok) {
		return strings.ToUpper(tok)
	}
	if len(tok) == 1 {
		return strings.ToUpper(tok)
	}
	return strings.ToUpper(tok[:1]) + tok[1:]
}

func isFunctionKey(tok string) bool {
	if len(tok) < 2 || tok[0] != 'f' {
		return false
	}
	n, err := strconv.Atoi(tok[1:])
	return err == nil && n >= 1 && n <= 24
}

// Tokens returns the ordered canonical tokens.
func (c Combo) Tokens() []string {
	out := make([]string, len(c.tokens))
	copy(out, c.tokens)
	return out
}

// IsZero reports whether the combo has no tokens.
func (c Combo) IsZero() bool {
	return len(c.tokens) == 0
}

// Split separates the combo into its modifiers and its final
// non-modifier key. A combo must carry exactly one non-modifier key to
// be bindable.
func (c Combo) Split() (modifiers []string, key string, err error) {
	for _, tok := range c.tokens {
		if _, ok := modifierAliases[tok]; ok {
			modifiers = append(modifiers, tok)
			continue
		}
		if key != "" {
			return nil, "", fmt.Errorf("combo %q has multiple keys", c.String())
		}
		key = tok
	}
	if key == "" {
		return nil, "", fmt.Errorf("combo %q has no key", c.String())
	}
	return modifiers, key, nil
}
