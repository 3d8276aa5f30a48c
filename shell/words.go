package shell

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"

	ftpsh "github.com/Paranoid-AF/ftpsh"
)

// splitWords breaks line into arguments using shell quoting rules only.
// Nothing is expanded: $VAR, ${...}, $(...) and ~ reach the host exactly as
// typed, minus the quotes around them.
func splitWords(line string) ([]string, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))

	var words []string
	for w, err := range parser.WordsSeq(strings.NewReader(line)) {
		if err != nil {
			return nil, &ftpsh.ParseError{Reason: err.Error()}
		}
		var sb strings.Builder
		literalParts(&sb, line, w.Parts, false)
		words = append(words, sb.String())
	}
	return words, nil
}

func literalParts(sb *strings.Builder, src string, parts []syntax.WordPart, quoted bool) {
	for _, part := range parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(unescape(p.Value, quoted))
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			literalParts(sb, src, p.Parts, true)
		default:
			sb.WriteString(src[part.Pos().Offset():part.End().Offset()])
		}
	}
}

// unescape drops the backslashes a shell would consume. Inside double
// quotes only \$ \` \" \\ and a line continuation are escapes.
func unescape(s string, quoted bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		next := s[i+1]
		switch {
		case next == '\n':
			i++
		case !quoted, strings.IndexByte("$`\"\\", next) >= 0:
			sb.WriteByte(next)
			i++
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
