// Package errs holds the error taxonomy shared by the scanner, the sequence
// builder and the executor.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks malformed names or versions, broken module chains and
	// unresolvable dependency declarations. Raised before the target is touched.
	ErrConfiguration = errors.New("configuration error")

	// ErrSequence marks a run where no pending module has an eligible next step.
	ErrSequence = errors.New("sequence error")

	// ErrExecution marks a failed script or a failed version write.
	ErrExecution = errors.New("execution error")
)

type kindError struct {
	kind error
	msg  string
	err  error
}

func (e *kindError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *kindError) Unwrap() []error {
	if e.err != nil {
		return []error{e.kind, e.err}
	}
	return []error{e.kind}
}

// Config returns a configuration error.
func Config(format string, args ...any) error {
	return &kindError{kind: ErrConfiguration, msg: fmt.Sprintf(format, args...)}
}

// Execution wraps cause as an execution error.
func Execution(cause error, format string, args ...any) error {
	return &kindError{kind: ErrExecution, msg: fmt.Sprintf(format, args...), err: cause}
}
