package onedrivefs

import (
	"strings"
)

// Mode holds the flags parsed from an open-mode string. It is derived once
// per handle and never changes afterwards.
type Mode struct {
	Reading    bool
	Writing    bool
	Appending  bool
	Truncating bool
	Creating   bool
	Exclusive  bool

	raw string
}

// ParseMode parses an open-mode string built from the letters
//
//	r  open for reading
//	w  open for writing, create, truncate
//	a  open for writing, create, position at end
//	x  open for writing, create, fail if the file exists
//	+  add reading and writing to the above
//	b  binary (the only supported representation)
//
// The mode must start with exactly one of r, w, a or x. Text mode ("t") is rejected:
// content is transferred byte-exact and the handle never translates it.
func ParseMode(mode string) (Mode, error) {
	m := Mode{raw: mode}

	if strings.ContainsRune(mode, 't') {
		return Mode{}, &FSError{Code: ErrInvalidArgument, Message: "text mode is not supported", Path: mode}
	}

	if mode == "" || !strings.ContainsRune("rwax", rune(mode[0])) {
		return Mode{}, &FSError{Code: ErrInvalidArgument, Message: "mode must start with one of r, w, a, x", Path: mode}
	}

	seen := make(map[rune]bool, len(mode))
	base := 0
	for _, c := range mode {
		if seen[c] {
			return Mode{}, &FSError{Code: ErrInvalidArgument, Message: "duplicate mode character", Path: mode}
		}
		seen[c] = true

		switch c {
		case 'r':
			base++
			m.Reading = true
		case 'w':
			base++
			m.Writing = true
			m.Truncating = true
			m.Creating = true
		case 'a':
			base++
			m.Writing = true
			m.Appending = true
			m.Creating = true
		case 'x':
			base++
			m.Writing = true
			m.Creating = true
			m.Exclusive = true
		case '+':
			m.Reading = true
			m.Writing = true
		case 'b':
		default:
			return Mode{}, &FSError{Code: ErrInvalidArgument, Message: "invalid mode character " + string(c), Path: mode}
		}
	}

	if base != 1 {
		return Mode{}, &FSError{Code: ErrInvalidArgument, Message: "mode must contain exactly one of r, w, a, x", Path: mode}
	}
	return m, nil
}

// String returns the mode string the flags were parsed from.
func (m Mode) String() string {
	return m.raw
}

// fetches reports whether opening with this mode downloads existing content.
func (m Mode) fetches() bool {
	return (m.Reading || m.Appending) && !m.Truncating
}
