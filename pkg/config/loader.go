package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

// Format is a profile document format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatFromPath picks the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported profile extension %q (expected .yaml, .yml, .json or .cue)", filepath.Ext(path))
	}
}

// Loader loads and validates profiles. It holds no profile state and can load
// several profiles in sequence.
type Loader struct {
	validate *validator.Validate
	cue      *CUEParser
}

// NewLoader creates a new profile loader.
func NewLoader() *Loader {
	return &Loader{
		validate: newValidator(),
		cue:      NewCUEParser(),
	}
}

// LoadProfile reads and validates the profile at path.
func LoadProfile(ctx context.Context, path string) (*engine.Profile, error) {
	return NewLoader().Load(ctx, path)
}

// Parse validates a profile document held in memory.
func Parse(data []byte, format Format, source string) (*engine.Profile, error) {
	return NewLoader().Parse(data, format, source)
}

// Load reads the profile file and parses it in the format given by its extension.
func (l *Loader) Load(ctx context.Context, path string) (*engine.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, engine.NewProfileParseError(fmt.Sprintf("cannot load %s", path), err).WithIdentifier(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewProfileParseError(fmt.Sprintf("cannot read %s", path), err).WithIdentifier(path)
	}

	return l.Parse(data, format, path)
}

// Parse decodes and validates a profile document. It performs no I/O.
func (l *Loader) Parse(data []byte, format Format, source string) (*engine.Profile, error) {
	var (
		doc *ProfileDocument
		err error
	)

	switch format {
	case FormatYAML, FormatJSON:
		doc, err = decodeYAML(data, source)
	case FormatCUE:
		doc, err = l.cue.Parse(data, source)
	default:
		err = engine.NewProfileParseError(fmt.Sprintf("unsupported profile format %q", format), nil)
	}
	if err != nil {
		return nil, err
	}

	if err := validateDocument(l.validate, doc); err != nil {
		return nil, err
	}

	return doc.ToEngineProfile(source)
}

// decodeYAML decodes YAML (and JSON, a YAML subset) strictly: unknown keys and
// mistyped values are schema violations, never coerced.
func decodeYAML(data []byte, source string) (*ProfileDocument, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, engine.NewProfileParseError(fmt.Sprintf("cannot parse %s", source), err).WithIdentifier(source)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, engine.NewProfileParseError(fmt.Sprintf("%s is empty", source), nil).WithIdentifier(source)
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, engine.NewSchemaViolationError("", "profile root must be a mapping")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc ProfileDocument
	if err := dec.Decode(&doc); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
			return nil, typeErrorToViolation(typeErr.Errors[0], root.Content[0])
		}
		return nil, engine.NewProfileParseError(fmt.Sprintf("cannot parse %s", source), err).WithIdentifier(source)
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, engine.NewProfileParseError(fmt.Sprintf("%s holds more than one document", source), nil).WithIdentifier(source)
	}

	return &doc, nil
}

var (
	typeErrorLine    = regexp.MustCompile(`^line (\d+): (.+)$`)
	unknownFieldErr  = regexp.MustCompile(`^field (\S+) not found in type`)
	unmarshalTypeErr = regexp.MustCompile("^cannot unmarshal !!(\\w+)(?: `(.*)`)? into (.+)$")
)

// typeErrorToViolation converts one yaml.v3 type error message into a schema
// violation, resolving its line to a document path.
func typeErrorToViolation(msg string, root *yaml.Node) *engine.Error {
	m := typeErrorLine.FindStringSubmatch(msg)
	if m == nil {
		return engine.NewSchemaViolationError("", msg)
	}
	line, _ := strconv.Atoi(m[1])
	detail := m[2]
	path := pathAtLine(root, line)

	if f := unknownFieldErr.FindStringSubmatch(detail); f != nil {
		return engine.NewSchemaViolationError(path, fmt.Sprintf("unknown field %q", f[1]))
	}
	if u := unmarshalTypeErr.FindStringSubmatch(detail); u != nil {
		got := yamlKindName(u[1])
		if u[2] != "" {
			got = fmt.Sprintf("%s %q", got, u[2])
		}
		return engine.NewSchemaViolationError(path, fmt.Sprintf("expected %s, got %s", goKindName(u[3]), got))
	}
	return engine.NewSchemaViolationError(path, detail)
}

// pathAtLine returns the document path of the first key or scalar list item on line.
func pathAtLine(root *yaml.Node, line int) string {
	found := ""
	var walk func(n *yaml.Node, path string)
	walk = func(n *yaml.Node, path string) {
		if found != "" {
			return
		}
		switch n.Kind {
		case yaml.MappingNode:
			for i := 0; i+1 < len(n.Content); i += 2 {
				key, val := n.Content[i], n.Content[i+1]
				p := key.Value
				if path != "" {
					p = path + "." + key.Value
				}
				if key.Line == line {
					found = p
					return
				}
				walk(val, p)
			}
		case yaml.SequenceNode:
			for i, item := range n.Content {
				p := fmt.Sprintf("%s[%d]", path, i)
				if item.Kind == yaml.ScalarNode && item.Line == line {
					found = p
					return
				}
				walk(item, p)
			}
		}
	}
	walk(root, "")
	if found == "" {
		return fmt.Sprintf("line %d", line)
	}
	return found
}

func yamlKindName(tag string) string {
	switch tag {
	case "str":
		return "string"
	case "int":
		return "integer"
	case "float":
		return "number"
	case "bool":
		return "boolean"
	case "seq":
		return "list"
	case "map":
		return "mapping"
	default:
		return tag
	}
}

func goKindName(goType string) string {
	switch {
	case goType == "string":
		return "string"
	case goType == "bool":
		return "boolean"
	case strings.HasPrefix(goType, "int") || strings.HasPrefix(goType, "uint"):
		return "integer"
	case strings.HasPrefix(goType, "float"):
		return "number"
	case strings.HasPrefix(goType, "[]"):
		return "list"
	default:
		return "mapping"
	}
}
