package main

import (
	"bufio"
	"unicode"
)

type keyKind int

const (
	keyIgnored keyKind = iota
	keyRune
	keyEnter
	keyInterrupt
	keyEndOfInput
	keyBackspace
	keyDelete
	keyTab
	keyLeft
	keyRight
	keyHome
	keyEnd
	keyKillLine
)

type key struct {
	kind keyKind
	r    rune
}

// controlKeys maps single control bytes read in raw mode.
var controlKeys = map[rune]keyKind{
	0x01: keyHome,      // Ctrl-A
	0x03: keyInterrupt, // Ctrl-C
	0x04: keyEndOfInput,
	0x05: keyEnd, // Ctrl-E
	0x08: keyBackspace,
	'\t': keyTab,
	'\n': keyEnter,
	'\r': keyEnter,
	0x15: keyKillLine, // Ctrl-U
	0x7f: keyBackspace,
}

// readKey decodes one keypress. Multi-byte UTF-8 input arrives as a
// single keyRune.
func readKey(r *bufio.Reader) (key, error) {
	c, _, err := r.ReadRune()
	if err != nil {
		return key{}, err
	}
	if c == 0x1b {
		return readEscape(r)
	}
	if kind, ok := controlKeys[c]; ok {
		return key{kind: kind}, nil
	}
	if !unicode.IsPrint(c) {
		return key{kind: keyIgnored}, nil
	}
	return key{kind: keyRune, r: c}, nil
}

// readEscape decodes the CSI and SS3 sequences terminals send for cursor
// keys, e.g. ESC [ D, ESC O H or ESC [ 3 ~.
func readEscape(r *bufio.Reader) (key, error) {
	intro, err := r.ReadByte()
	if err != nil {
		return key{}, err
	}
	if intro != '[' && intro != 'O' {
		return key{kind: keyIgnored}, nil
	}

	var param []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return key{}, err
		}
		if b >= '0' && b <= '9' || b == ';' {
			param = append(param, b)
			continue
		}
		return key{kind: escapeKind(b, string(param))}, nil
	}
}

func escapeKind(final byte, param string) keyKind {
	switch final {
	case 'C':
		return keyRight
	case 'D':
		return keyLeft
	case 'H':
		return keyHome
	case 'F':
		return keyEnd
	case '~':
		switch param {
		case "1", "7":
			return keyHome
		case "4", "8":
			return keyEnd
		case "3":
			return keyDelete
		}
	}
	return keyIgnored
}
