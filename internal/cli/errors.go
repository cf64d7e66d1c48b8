package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/statecore/internal/harness"
	"github.com/roach88/statecore/internal/schema"
)

// Error codes reported in JSON responses and text diagnostics.
const (
	ErrCodeGeneric      = "E001" // generic/unknown error
	ErrCodeScanError    = "E002" // directory scan error
	ErrCodeParseFailed  = "E004" // scenario YAML invalid
	ErrCodeNotFound     = "E005" // path not found
	ErrCodeSchema       = "E006" // CUE schema does not compile
	ErrCodeInitialState = "E007" // initial state rejected
	ErrCodeJournal      = "E008" // journal open/read/write failed
	ErrCodeRunFailed    = "E010" // scenario ran but failed
)

// LoadError is one problem found while loading a scenario.
type LoadError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	File    string    `json:"file,omitempty"`
	Line    int       `json:"line,omitempty"`
	Pos     token.Pos `json:"-"` // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// loadScenario reads, parses and (if it has a schema) type-checks the
// initial state of a scenario file without running it.
func loadScenario(path string) (*harness.Scenario, []*LoadError) {
	if _, err := os.Stat(path); err != nil {
		return nil, []*LoadError{{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenario not found: %s", path), File: path}}
	}

	s, err := harness.LoadScenario(path)
	if err != nil {
		return nil, []*LoadError{{Code: ErrCodeParseFailed, Message: err.Error(), File: path}}
	}
	if s.Schema == "" {
		return s, nil
	}

	v, err := schema.Compile(path+"#schema", s.Schema)
	if err != nil {
		return s, fromSchemaError(ErrCodeSchema, path, err)
	}
	initial, err := harness.InitialState(s)
	if err != nil {
		return s, []*LoadError{{Code: ErrCodeInitialState, Message: err.Error(), File: path}}
	}
	if err := v.Validate(initial); err != nil {
		return s, fromSchemaError(ErrCodeInitialState, path, err)
	}
	return s, nil
}

// fromSchemaError turns each CUE issue into a LoadError with its position.
func fromSchemaError(code, path string, err error) []*LoadError {
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		return []*LoadError{{Code: code, Message: err.Error(), File: path}}
	}

	out := make([]*LoadError, 0, len(verr.Issues))
	for _, issue := range verr.Issues {
		le := &LoadError{Code: code, Message: issue.Message, File: path, Pos: issue.Pos}
		if issue.Pos.IsValid() {
			le.Line = issue.Pos.Line()
		}
		out = append(out, le)
	}
	return out
}
