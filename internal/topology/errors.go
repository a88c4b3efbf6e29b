package topology

import (
	"errors"
	"fmt"
	"strings"

	"evalgo.org/tsuite/models"
)

var (
	// ErrAmbiguousLine means more than one grammar rule matched a line.
	// It indicates a broken rule table, not bad input.
	ErrAmbiguousLine = errors.New("line matches more than one rule")

	// ErrUnterminatedDirective means a multi-line directive hit end of input
	// before its ';' terminator.
	ErrUnterminatedDirective = errors.New("directive not terminated before end of input")

	// ErrIncompleteResource means a resource block closed without every
	// field its kind requires.
	ErrIncompleteResource = errors.New("resource is missing required fields")

	// ErrUnknownType means a resource block declared a type the harness
	// does not drive.
	ErrUnknownType = errors.New("unrecognized resource type")
)

// IncompleteError lists the required fields a resource lacked at finalize.
type IncompleteError struct {
	Name    string
	Kind    models.Kind
	Missing []string
}

func (e *IncompleteError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("resource %q: missing %s", e.Name, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s resource %q: missing %s", e.Kind, e.Name, strings.Join(e.Missing, ", "))
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncompleteResource
}

// LineError ties a parse failure to the configuration line it happened on.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
