package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a fatal planner error. Every kind aborts the invocation
// before any plan or report is produced.
type ErrorKind string

const (
	// KindProfileParse indicates the profile document is syntactically malformed.
	KindProfileParse ErrorKind = "ProfileParseError"

	// KindSchemaViolation indicates the document parsed but does not match the
	// profile schema (missing field, wrong type, unknown action kind, ...).
	KindSchemaViolation ErrorKind = "SchemaViolationError"

	// KindUnknownDependency indicates a task depends on a task id that does not exist.
	KindUnknownDependency ErrorKind = "UnknownDependencyError"

	// KindCyclicDependency indicates the task dependency graph contains a cycle.
	KindCyclicDependency ErrorKind = "CyclicDependencyError"

	// KindResultsDirectory indicates the results directory cannot be read.
	KindResultsDirectory ErrorKind = "ResultsDirectoryError"

	// KindInternal is used for invariant violations inside the planner itself.
	KindInternal ErrorKind = "InternalError"
)

// Error is a classified planner error carrying the location that caused it.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Path is the location within the profile document (e.g. "components[0].tasks[1].action").
	Path string `json:"path,omitempty"`

	// Identifier is the offending identifier (task id, dependency id, directory, ...).
	Identifier string `json:"identifier,omitempty"`

	// Cycle lists the task ids forming a dependency cycle, first id repeated at the end.
	Cycle []string `json:"cycle,omitempty"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	sb.WriteString(": ")
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithPath adds the document location to an error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithIdentifier adds the offending identifier to an error.
func (e *Error) WithIdentifier(id string) *Error {
	e.Identifier = id
	return e
}

// NewProfileParseError creates an error for malformed profile syntax.
func NewProfileParseError(message string, err error) *Error {
	return &Error{Kind: KindProfileParse, Message: message, Err: err}
}

// NewSchemaViolationError creates an error for a profile that does not match the schema.
func NewSchemaViolationError(path, message string) *Error {
	return &Error{Kind: KindSchemaViolation, Message: message, Path: path}
}

// NewUnknownDependencyError creates an error for a dependency on a nonexistent task.
func NewUnknownDependencyError(taskID, dependency string) *Error {
	return &Error{
		Kind:       KindUnknownDependency,
		Message:    fmt.Sprintf("task %q depends on unknown task %q", taskID, dependency),
		Identifier: dependency,
	}
}

// NewCyclicDependencyError creates an error naming one dependency cycle.
func NewCyclicDependencyError(cycle []string) *Error {
	id := ""
	if len(cycle) > 0 {
		id = cycle[0]
	}
	return &Error{
		Kind:       KindCyclicDependency,
		Message:    "dependency cycle " + strings.Join(cycle, " -> "),
		Identifier: id,
		Cycle:      cycle,
	}
}

// NewResultsDirectoryError creates an error for an unreadable results directory.
func NewResultsDirectoryError(dir string, err error) *Error {
	return &Error{
		Kind:       KindResultsDirectory,
		Message:    fmt.Sprintf("results directory %s is unreadable", dir),
		Identifier: dir,
		Err:        err,
	}
}

// NewInternalError creates an error for a failure inside the planner itself.
func NewInternalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of a classified error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a classified error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Process exit codes.
const (
	ExitOK             = 0
	ExitInvalidProfile = 1
	ExitGraphError     = 2
	ExitResultsDir     = 3
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch KindOf(err) {
	case KindUnknownDependency, KindCyclicDependency:
		return ExitGraphError
	case KindResultsDirectory:
		return ExitResultsDir
	default:
		return ExitInvalidProfile
	}
}
