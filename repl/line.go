package main

import "unicode/utf8"

// lineBuffer is the text being edited and a cursor counted in runes.
type lineBuffer struct {
	runes []rune
	pos   int
}

func (l *lineBuffer) String() string { return string(l.runes) }

func (l *lineBuffer) empty() bool { return len(l.runes) == 0 }

// cursorByte is the cursor as a byte offset into String().
func (l *lineBuffer) cursorByte() int {
	n := 0
	for _, r := range l.runes[:l.pos] {
		n += utf8.RuneLen(r)
	}
	return n
}

// after is the number of runes right of the cursor.
func (l *lineBuffer) after() int { return len(l.runes) - l.pos }

func (l *lineBuffer) insert(s string) {
	ins := []rune(s)
	l.runes = append(l.runes[:l.pos], append(ins, l.runes[l.pos:]...)...)
	l.pos += len(ins)
}

func (l *lineBuffer) backspace() {
	if l.pos == 0 {
		return
	}
	l.runes = append(l.runes[:l.pos-1], l.runes[l.pos:]...)
	l.pos--
}

func (l *lineBuffer) deleteForward() {
	if l.pos == len(l.runes) {
		return
	}
	l.runes = append(l.runes[:l.pos], l.runes[l.pos+1:]...)
}

func (l *lineBuffer) left() {
	if l.pos > 0 {
		l.pos--
	}
}

func (l *lineBuffer) right() {
	if l.pos < len(l.runes) {
		l.pos++
	}
}

func (l *lineBuffer) home() { l.pos = 0 }

func (l *lineBuffer) end() { l.pos = len(l.runes) }

// killBefore drops everything left of the cursor.
func (l *lineBuffer) killBefore() {
	l.runes = append(l.runes[:0], l.runes[l.pos:]...)
	l.pos = 0
}

// wordStart is the rune index where the word under the cursor begins.
func (l *lineBuffer) wordStart() int {
	i := l.pos
	for i > 0 && l.runes[i-1] != ' ' && l.runes[i-1] != '\t' {
		i--
	}
	return i
}

// word returns the part of the current word left of the cursor.
func (l *lineBuffer) word() string { return string(l.runes[l.wordStart():l.pos]) }

// replaceWord swaps the part of the current word left of the cursor for s.
func (l *lineBuffer) replaceWord(s string) {
	start := l.wordStart()
	l.runes = append(l.runes[:start], l.runes[l.pos:]...)
	l.pos = start
	l.insert(s)
}
