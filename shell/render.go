package shell

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"slices"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	ftpsh "github.com/Paranoid-AF/ftpsh"
)

// Renderer prints command results in one output format.
type Renderer struct {
	format string
}

// NewRenderer returns a renderer for format. Unknown formats render as text.
func NewRenderer(format string) *Renderer {
	if !slices.Contains(ftpsh.Formats, format) {
		format = "text"
	}
	return &Renderer{format: format}
}

// Format returns the effective output format.
func (r *Renderer) Format() string { return r.format }

// Render writes v to w.
func (r *Renderer) Render(w io.Writer, v any) error {
	switch r.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		return encodeYAML(w, v)
	case "toml":
		return toml.NewEncoder(w).Encode(tomlDocument(v))
	}
	return renderText(w, v)
}

// renderText prints strings and string lists verbatim and falls back to
// YAML for structured values.
func renderText(w io.Writer, v any) error {
	switch v := v.(type) {
	case string:
		_, err := fmt.Fprintln(w, v)
		return err
	case []string:
		for _, line := range v {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	case fmt.Stringer:
		_, err := fmt.Fprintln(w, v.String())
		return err
	}
	return encodeYAML(w, v)
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// tomlDocument wraps values TOML cannot hold at the top level (lists,
// scalars) in a "result" table.
func tomlDocument(v any) any {
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Struct, reflect.Map:
		return v
	}
	return map[string]any{"result": v}
}
