package stream

import (
	"errors"
	"fmt"
	"strings"
)

// Intent is the access intent selected by the first character of an open
// mode.
type Intent byte

const (
	IntentRead      Intent = 'r'
	IntentWrite     Intent = 'w'
	IntentAppend    Intent = 'a'
	IntentExclusive Intent = 'x'
	IntentCreate    Intent = 'c'
)

// Mode is a parsed fopen-style mode string.
type Mode struct {
	Intent Intent

	// Update is set by a '+' anywhere in the mode.
	Update bool
}

// ParseMode parses modes such as "r", "r+", "wb", "a+t" or "x". The binary,
// text and close-on-exec flags ('b', 't', 'e') are accepted and ignored.
func ParseMode(mode string) (Mode, error) {
	if mode == "" {
		return Mode{}, errors.New("empty mode")
	}

	m := Mode{Intent: Intent(mode[0])}
	switch m.Intent {
	case IntentRead, IntentWrite, IntentAppend, IntentExclusive, IntentCreate:
	default:
		return Mode{}, fmt.Errorf("unknown access intent %q in mode %q", mode[0], mode)
	}

	for _, c := range mode[1:] {
		switch c {
		case '+':
			m.Update = true
		case 'b', 't', 'e':
		default:
			return Mode{}, fmt.Errorf("unknown flag %q in mode %q", c, mode)
		}
	}
	return m, nil
}

// ReadOnly reports whether writes must be rejected.
func (m Mode) ReadOnly() bool {
	return m.Intent == IntentRead && !m.Update
}

// WriteOnly reports whether reads must return nothing.
func (m Mode) WriteOnly() bool {
	return m.Intent != IntentRead && !m.Update
}

// Appending reports whether every write lands at the end.
func (m Mode) Appending() bool {
	return m.Intent == IntentAppend
}

func (m Mode) String() string {
	var b strings.Builder
	b.WriteByte(byte(m.Intent))
	if m.Update {
		b.WriteByte('+')
	}
	return b.String()
}
