package engine

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "schema violation with path",
			err:  NewSchemaViolationError("components[0].tasks[1].action", `unknown action kind "explode"`),
			want: `SchemaViolationError: components[0].tasks[1].action: unknown action kind "explode"`,
		},
		{
			name: "unknown dependency",
			err:  NewUnknownDependencyError("configure", "install"),
			want: `UnknownDependencyError: task "configure" depends on unknown task "install"`,
		},
		{
			name: "cycle",
			err:  NewCyclicDependencyError([]string{"a", "b", "a"}),
			want: "CyclicDependencyError: dependency cycle a -> b -> a",
		},
		{
			name: "parse error wraps cause",
			err:  NewProfileParseError("line 3", errors.New("mapping values are not allowed")).WithPath("profile.yaml"),
			want: "ProfileParseError: profile.yaml: line 3: mapping values are not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsAndUnwrap(t *testing.T) {
	err := fmt.Errorf("loading: %w", NewResultsDirectoryError("/tmp/x", os.ErrNotExist))

	assert.ErrorIs(t, err, &Error{Kind: KindResultsDirectory})
	assert.NotErrorIs(t, err, &Error{Kind: KindProfileParse})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, KindResultsDirectory, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{NewProfileParseError("bad", nil), ExitInvalidProfile},
		{NewSchemaViolationError("name", "required"), ExitInvalidProfile},
		{NewUnknownDependencyError("a", "b"), ExitGraphError},
		{NewCyclicDependencyError([]string{"a", "a"}), ExitGraphError},
		{NewResultsDirectoryError("d", nil), ExitResultsDir},
		{errors.New("unknown flag"), ExitInvalidProfile},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}
