package command

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Context is the state of the line being edited when completion is asked for.
type Context struct {
	// Buffer is the whole input line.
	Buffer string
	// Cursor is the byte offset of the cursor within Buffer.
	Cursor int
	// Hints supplies remembered argument values. May be nil.
	Hints *Hints
}

// Complete returns the candidates for the token under the cursor, sorted
// lexicographically and deduplicated. The first token is matched as a
// case-insensitive prefix against active command names only; later tokens
// are completed by the resolved command's ArgsFunc, if any.
func Complete(cc Context, active *ActiveSet) []string {
	if active == nil {
		return nil
	}
	cursor := min(max(cc.Cursor, 0), len(cc.Buffer))
	head := cc.Buffer[:cursor]
	fields := strings.Fields(head)

	// The token under the cursor is empty when the cursor follows a blank.
	var prefix string
	pos := len(fields)
	if r, _ := utf8.DecodeLastRuneInString(head); head != "" && !unicode.IsSpace(r) {
		pos--
		prefix = fields[pos]
	}

	var candidates []string
	if pos == 0 {
		candidates = active.Names()
	} else {
		cmd, ok := active.Lookup(fields[0])
		if !ok || cmd.Args == nil {
			return nil
		}
		candidates = cmd.Args(active, cc.Hints, pos-1)
	}
	return filterPrefix(candidates, prefix)
}

func filterPrefix(candidates []string, prefix string) []string {
	lower := strings.ToLower(prefix)
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), lower) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// CommonPrefix returns the longest prefix shared by all candidates.
func CommonPrefix(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	prefix := candidates[0]
	for _, c := range candidates[1:] {
		for !strings.HasPrefix(c, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	for !utf8.ValidString(prefix) {
		prefix = prefix[:len(prefix)-1]
	}
	return prefix
}
