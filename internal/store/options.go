package store

import (
	"log/slog"
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// Option configures a Store.
type Option[S any] func(*Store[S])

// WithEqual sets the structural equality used to suppress no-op changes.
// Default: S's own Equal(S) bool method if it has one, else cmp.Equal with
// unexported fields compared like exported ones.
func WithEqual[S any](equal func(a, b S) bool) Option[S] {
	return func(s *Store[S]) {
		if equal != nil {
			s.equal = equal
		}
	}
}

// WithFreeze sets the function that makes a state immutable before it is
// published. Default: S's own Clone() S method if it has one, else identity.
func WithFreeze[S any](freeze func(S) S) Option[S] {
	return func(s *Store[S]) {
		if freeze != nil {
			s.freeze = freeze
		}
	}
}

// WithValidator checks every state before it becomes current, the initial
// state included. A non-nil error panics with *InvalidStateError.
func WithValidator[S any](validate func(S) error) Option[S] {
	return func(s *Store[S]) {
		s.validate = validate
	}
}

// WithFreezeCheck fingerprints each state before it is handed to a state
// subscriber and panics with *FreezeViolationError if the subscriber
// changed it.
func WithFreezeCheck[S any](fingerprint func(S) string) Option[S] {
	return func(s *Store[S]) {
		s.fingerprint = fingerprint
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger[S any](logger *slog.Logger) Option[S] {
	return func(s *Store[S]) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInstrumentation attaches pipeline telemetry.
func WithInstrumentation[S any](instr Instrumentation) Option[S] {
	return func(s *Store[S]) {
		if instr != nil {
			s.instr = instr
		}
	}
}

type equaler[S any] interface {
	Equal(S) bool
}

// compareAll lets cmp descend into unexported fields instead of panicking.
var compareAll = cmp.Exporter(func(reflect.Type) bool { return true })

func defaultEqual[S any](a, b S) bool {
	if e, ok := any(a).(equaler[S]); ok {
		return e.Equal(b)
	}
	return cmp.Equal(a, b, compareAll)
}

type cloner[S any] interface {
	Clone() S
}

func defaultFreeze[S any](s S) S {
	if c, ok := any(s).(cloner[S]); ok {
		return c.Clone()
	}
	return s
}
