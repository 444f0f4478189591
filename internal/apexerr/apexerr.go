// Package apexerr defines the error taxonomy shared across the engine.
package apexerr

import "fmt"

// Kind classifies an error into one of the taxonomy groups from the
// configuration, expression, driver, pipeline, and resource domains.
type Kind string

const (
	// Config errors.
	KindYamlParse       Kind = "YamlParse"
	KindSchemaViolation Kind = "SchemaViolation"
	KindTypeAmbiguous   Kind = "TypeAmbiguous"
	KindMetadataMissing Kind = "MetadataMissing"
	KindCycleDetected   Kind = "CycleDetected"
	KindUnknownRef      Kind = "UnknownReference"
	KindDuplicateId     Kind = "DuplicateId"

	// Expression errors.
	KindParseError      Kind = "ParseError"
	KindPathNotFound    Kind = "PathNotFound"
	KindTypeMismatch    Kind = "TypeMismatch"
	KindIndexOutOfRange Kind = "IndexOutOfBounds"
	KindDivisionByZero  Kind = "DivisionByZero"
	KindFunctionError   Kind = "FunctionError"
	KindArityError      Kind = "ArityError"
	KindUnknownFunction Kind = "UnknownFunction"
	KindUnknownVariable Kind = "UnknownVariable"

	// Lookup/driver errors.
	KindConnectionError    Kind = "ConnectionError"
	KindAuthError          Kind = "AuthError"
	KindTimeoutError       Kind = "TimeoutError"
	KindNotFound           Kind = "NotFound"
	KindDriverParseError   Kind = "ParseError"
	KindDuplicateKey       Kind = "DuplicateKey"
	KindFilterNotSupported Kind = "FilterNotSupported"

	// Pipeline errors.
	KindTypeConflict             Kind = "TypeConflict"
	KindFieldCollision            Kind = "FieldCollision"
	KindMissingDataPolicyViolated Kind = "MissingDataPolicyViolation"

	// Resource errors.
	KindCacheError     Kind = "CacheError"
	KindRetryExhausted Kind = "RetryExhausted"
	KindCircuitOpen    Kind = "CircuitOpen"
)

// Error is the engine-wide error value. It always carries a Kind so
// callers can branch with errors.As without parsing messages.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, apexerr.New(KindX, "", "")) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an *Error wrapping an underlying cause.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind, true
	}
	return "", false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
