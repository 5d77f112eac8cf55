// Package render projects plans, workflow query results and reports as text,
// Markdown, JSON or YAML. Rendering never alters, reorders or filters the data.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Format is an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"

	// FormatMarkdown is a standalone document for a wiki or a docs directory.
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses an output format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected text, markdown, json or yaml)", s)
	}
}

// structured writes v as indented JSON or as YAML.
func structured(w io.Writer, v interface{}, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, v)
	case FormatYAML:
		return writeYAML(w, v)
	default:
		return fmt.Errorf("format %q is not a structured format", format)
	}
}

// writeJSON writes indented JSON. Struct fields keep declaration order and map
// keys are sorted.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML writes v as block-style YAML with the same keys and ordering as the
// JSON form.
func writeYAML(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to convert to YAML: %w", err)
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle drops the flow and quoting styles inherited from JSON. The encoder
// still quotes strings that would otherwise read as another type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func joinOrDash(items []string, sep string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, sep)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
