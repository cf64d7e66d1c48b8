// Package schema validates ir states against CUE constraints.
//
// A schema is ordinary CUE describing the state object, e.g.
//
//	count: int & >=0
//	items: [...string]
//
// Every accepted state is unified with the schema and must be concrete and
// conflict-free. Fields the schema does not mention are allowed unless the
// schema closes the struct.
package schema

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/statecore/internal/ir"
)

// Validator checks states against one compiled schema.
// It is not safe for concurrent use (cue.Context is not).
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// Compile compiles CUE source into a Validator.
// name is used as the filename in error positions.
func Compile(name, src string) (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, fromCUE(err)
	}
	return &Validator{ctx: ctx, schema: v}, nil
}

// CompileFile reads and compiles a CUE schema file.
func CompileFile(path string) (*Validator, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Compile(path, string(src))
}

// Validate reports whether state satisfies the schema.
// The returned error is a *ValidationError.
func (v *Validator) Validate(state ir.IRObject) error {
	data, err := ir.MarshalIRValue(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	val := v.ctx.CompileBytes(data, cue.Filename("state"))
	if err := val.Err(); err != nil {
		return fromCUE(err)
	}

	unified := v.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fromCUE(err)
	}
	return nil
}

// Issue is one problem reported by CUE.
type Issue struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (i Issue) String() string {
	if i.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", i.Pos.Filename(), i.Pos.Line(), i.Pos.Column(), i.Message)
	}
	return i.Message
}

// ValidationError collects every issue from a failed compile or validation.
type ValidationError struct {
	Issues []Issue
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return e.Issues[0].String()
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("%d schema errors: %s", len(e.Issues), strings.Join(parts, "; "))
}

// fromCUE extracts path and position info from CUE errors.
func fromCUE(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Issues: []Issue{{Message: err.Error()}}}
	}

	out := &ValidationError{Issues: make([]Issue, 0, len(errs))}
	for _, e := range errs {
		issue := Issue{
			Path:    strings.Join(e.Path(), "."),
			Message: e.Error(),
		}
		if positions := errors.Positions(e); len(positions) > 0 {
			issue.Pos = positions[0]
		}
		out.Issues = append(out.Issues, issue)
	}
	return out
}
