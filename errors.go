package nbadet

import "fmt"

// Configuration errors. Everything that can go wrong is detected while building a
// Config; the engine itself has no error returns.

// ErrInvalidArgs indicates an unsupported combination of switches or a malformed
// argument document.
var ErrInvalidArgs = &ConfigError{
	Kind:    InvalidArgs,
	Message: "invalid determinization arguments",
}

// ErrTooManyPropositions indicates an NBA over more than MaxPropositions propositions.
var ErrTooManyPropositions = &ConfigError{
	Kind:    TooManyPropositions,
	Message: "too many atomic propositions",
}

// ErrUnknownOracle indicates a simulation name with no registered oracle.
var ErrUnknownOracle = &ConfigError{
	Kind:    UnknownOracle,
	Message: "unknown simulation oracle",
}

// ErrOracleFailed indicates that an oracle rejected its argument or failed to run.
var ErrOracleFailed = &ConfigError{
	Kind:    OracleFailed,
	Message: "simulation oracle failed",
}

// ErrorKind classifies configuration errors
type ErrorKind uint8

const (
	InvalidArgs ErrorKind = iota
	TooManyPropositions
	UnknownOracle
	OracleFailed
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgs:
		return "InvalidArgs"
	case TooManyPropositions:
		return "TooManyPropositions"
	case UnknownOracle:
		return "UnknownOracle"
	case OracleFailed:
		return "OracleFailed"
	default:
		return fmt.Sprintf("UnknownErrorKind(%d)", k)
	}
}

// ConfigError is a rejected configuration.
type ConfigError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is matches any ConfigError of the same kind, so errors.Is(err, ErrInvalidArgs)
// works for every invalid-arguments error.
func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func configErrorf(kind ErrorKind, cause error, format string, args ...any) *ConfigError {
	return &ConfigError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}
