package config

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

// CUEParser parses CUE profiles and checks them against the #Profile schema.
type CUEParser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	ctx := cuecontext.New()
	return &CUEParser{
		ctx:            ctx,
		schemaRegistry: NewSchemaRegistry(ctx),
	}
}

// Parse compiles CUE source, unifies it with the profile schema and decodes it.
// Compilation failures are ProfileParseErrors; schema conflicts are SchemaViolationErrors.
func (cp *CUEParser) Parse(data []byte, source string) (*ProfileDocument, error) {
	val := cp.ctx.CompileBytes(data, cue.Filename(source))
	if err := val.Err(); err != nil {
		return nil, engine.NewProfileParseError(fmt.Sprintf("cannot parse %s", source), firstCUEError(err))
	}

	schema, err := cp.schemaRegistry.Definition("profile", "#Profile")
	if err != nil {
		return nil, &engine.Error{Kind: engine.KindInternal, Message: "profile schema unavailable", Err: err}
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cp.convertCUEError(err)
	}

	var doc ProfileDocument
	if err := unified.Decode(&doc); err != nil {
		return nil, cp.convertCUEError(err)
	}

	return &doc, nil
}

// convertCUEError converts the first CUE error into a schema violation carrying
// the document path.
func (cp *CUEParser) convertCUEError(err error) *engine.Error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return engine.NewSchemaViolationError("", err.Error())
	}

	e := errs[0]
	format, args := e.Msg()
	return engine.NewSchemaViolationError(cuePath(e.Path()), fmt.Sprintf(format, args...))
}

// cuePath renders a CUE selector path in document notation, e.g. components[0].tasks[1].action.
func cuePath(selectors []string) string {
	var sb strings.Builder
	for _, sel := range selectors {
		if strings.HasPrefix(sel, "#") {
			continue
		}
		if _, err := strconv.Atoi(sel); err == nil {
			sb.WriteString("[" + sel + "]")
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(sel)
	}
	return sb.String()
}

// firstCUEError returns the first error with its position, if any.
func firstCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	e := errs[0]
	format, args := e.Msg()
	msg := fmt.Sprintf(format, args...)
	if pos := errors.Positions(e); len(pos) > 0 {
		return fmt.Errorf("line %d:%d: %s", pos[0].Line(), pos[0].Column(), msg)
	}
	return fmt.Errorf("%s", msg)
}
