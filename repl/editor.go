package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Paranoid-AF/ftpsh/command"
	"github.com/Paranoid-AF/ftpsh/shell"
)

// Completer returns completion candidates for the word under cursor.
type Completer func(buf string, cursor int) []string

// Editor reads lines from /dev/tty with cursor keys and Tab completion.
//
// The terminal is raw only while ReadLine runs. Between lines it is back in
// cooked mode, so command output needs no CR translation and Ctrl-C during
// a remote call raises SIGINT.
type Editor struct {
	in       *bufio.Reader
	out      io.Writer
	raw      func() (restore func(), err error)
	complete Completer
	release  func()
}

// NewEditor opens /dev/tty so that editing works with stdout redirected.
func NewEditor() (*Editor, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/tty: %w", err)
	}
	fd := int(tty.Fd())
	cooked, err := term.GetState(fd)
	if err != nil {
		tty.Close()
		return nil, fmt.Errorf("terminal state: %w", err)
	}

	e := newEditor(tty, tty, func() (func(), error) {
		if _, err := term.MakeRaw(fd); err != nil {
			return nil, err
		}
		return func() { term.Restore(fd, cooked) }, nil
	})
	e.release = func() {
		term.Restore(fd, cooked)
		tty.Close()
	}
	return e, nil
}

func newEditor(in io.Reader, out io.Writer, raw func() (func(), error)) *Editor {
	return &Editor{in: bufio.NewReader(in), out: out, raw: raw}
}

// Close puts the terminal back the way NewEditor found it.
func (e *Editor) Close() {
	if e.release != nil {
		e.release()
	}
}

// SetCompleter installs the function Tab asks for candidates.
func (e *Editor) SetCompleter(c Completer) { e.complete = c }

// Printf writes to the terminal, not to stdout.
func (e *Editor) Printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}

// ReadLine shows prompt and edits one line in raw mode. Ctrl-D on an empty
// line yields io.EOF and Ctrl-C yields shell.ErrInterrupt.
func (e *Editor) ReadLine(prompt string) (string, error) {
	restore, err := e.raw()
	if err != nil {
		return "", fmt.Errorf("raw mode: %w", err)
	}
	defer restore()

	var line lineBuffer
	for {
		e.redraw(prompt, &line)

		k, err := readKey(e.in)
		if err != nil {
			return "", err
		}
		switch k.kind {
		case keyEnter:
			io.WriteString(e.out, "\r\n")
			return line.String(), nil
		case keyInterrupt:
			io.WriteString(e.out, "^C\r\n")
			return "", shell.ErrInterrupt
		case keyEndOfInput:
			if line.empty() {
				io.WriteString(e.out, "\r\n")
				return "", io.EOF
			}
			line.deleteForward()
		case keyRune:
			line.insert(string(k.r))
		case keyBackspace:
			line.backspace()
		case keyDelete:
			line.deleteForward()
		case keyLeft:
			line.left()
		case keyRight:
			line.right()
		case keyHome:
			line.home()
		case keyEnd:
			line.end()
		case keyKillLine:
			line.killBefore()
		case keyTab:
			e.completeWord(&line)
		}
	}
}

// completeWord replaces the word before the cursor with the only candidate,
// or extends it to the candidates' common prefix, or lists them.
func (e *Editor) completeWord(line *lineBuffer) {
	if e.complete == nil {
		return
	}
	candidates := e.complete(line.String(), line.cursorByte())
	switch prefix := command.CommonPrefix(candidates); {
	case len(candidates) == 0:
	case len(candidates) == 1:
		line.replaceWord(candidates[0] + " ")
	case len(prefix) > len(line.word()):
		line.replaceWord(prefix)
	default:
		fmt.Fprintf(e.out, "\r\n%s\r\n", strings.Join(candidates, "  "))
	}
}

func (e *Editor) redraw(prompt string, line *lineBuffer) {
	fmt.Fprintf(e.out, "\r\x1b[K%s%s", prompt, line)
	if n := line.after(); n > 0 {
		fmt.Fprintf(e.out, "\x1b[%dD", n)
	}
}
