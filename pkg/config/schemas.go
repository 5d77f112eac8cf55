package config

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validating CUE profiles.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with the built-in profile schema.
func NewSchemaRegistry(ctx *cue.Context) *SchemaRegistry {
	if ctx == nil {
		ctx = cuecontext.New()
	}
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	if err := sr.RegisterSchema("profile", builtinProfileSchema); err != nil {
		panic(err)
	}

	return sr
}

// RegisterSchema compiles and registers a CUE schema under the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Definition returns a definition (e.g. "#Profile") of a registered schema.
func (sr *SchemaRegistry) Definition(schemaName, definition string) (cue.Value, error) {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", schemaName)
	}
	def := schema.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return cue.Value{}, fmt.Errorf("definition %s not found in schema %s", definition, schemaName)
	}
	return def, nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Built-in schema definitions

const builtinProfileSchema = `
// Profile schema for ralf installation profiles
#Profile: {
	// Name is the profile name
	name: string & !=""

	// Description is shown in reports
	description?: string

	// Components are the installable units, in declaration order
	components?: [...#Component]

	// Workflows are the automation loops
	workflows?: [...#Workflow]

	// Backups are the expected backup jobs
	backups?: [...#Backup]
}

#Component: {
	id:           string & =~"^[A-Za-z0-9][A-Za-z0-9_.-]*$"
	category?:    string
	description?: string
	installed?:   bool
	tasks?: [...#Task]
}

#Task: {
	id:           string & =~"^[A-Za-z0-9][A-Za-z0-9_.-]*$"
	description?: string
	action:       "deploy" | "configure" | "rotate-secret" | "discover" | "other"
	depends_on?: [...string]
	idempotent?:   bool
	precondition?: string
	parameters?: {...}
}

#Workflow: {
	loop:         string & !=""
	runtime:      string & !=""
	template?:    string
	description?: string
	phases?: [...string]
	inputs?: [...string]
	outputs?: [...string]
	trigger: #Trigger
}

#Trigger: {
	cron?:             string
	timezone?:         string
	interval_seconds?: int & >=0
}

#Backup: {
	datastore:  string & !=""
	namespace?: string
	retention:  string
	expected_guests?: [...string]
}
`
