package mirage

import (
	"errors"
	"fmt"
)

// Error represents a failure surfaced by the engine.
//
// Every failure is either an *Error with a specific code or an intentional
// nil/empty result under the non-strict contract. The engine never swallows
// an error and retries.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Model names the affected model, when known.
	Model string

	// Property names the affected property, when known.
	Property string

	// Key is the canonical primary-key form involved, when known.
	Key string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates a malformed schema or an operator/type
	// mismatch in a query. Fails fast at registration or first use.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeDuplicatePrimaryKey indicates a create with a colliding key.
	ErrCodeDuplicatePrimaryKey ErrorCode = "DUPLICATE_PRIMARY_KEY"

	// ErrCodeMissingPrimaryKey indicates a create with no resolvable
	// primary-key value.
	ErrCodeMissingPrimaryKey ErrorCode = "MISSING_PRIMARY_KEY"

	// ErrCodeNotFound indicates a strict-mode operation with zero matches.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeUnresolvedRelation indicates a non-nullable relation with no
	// reference, detected at resolution time.
	ErrCodeUnresolvedRelation ErrorCode = "UNRESOLVED_RELATION"

	// ErrCodeBrokenReference indicates a reference to a primary key absent
	// from the target store. Seeing this means inverse bookkeeping drifted
	// or the store was corrupted manually.
	ErrCodeBrokenReference ErrorCode = "BROKEN_REFERENCE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Model != "" && e.Property != "":
		return fmt.Sprintf("%s: %s (model=%s, property=%s)", e.Code, e.Message, e.Model, e.Property)
	case e.Model != "":
		return fmt.Sprintf("%s: %s (model=%s)", e.Code, e.Message, e.Model)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsNotFound reports whether err is a strict-mode zero-match error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsConfiguration reports whether err is a schema or query configuration error.
func IsConfiguration(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

// IsDuplicatePrimaryKey reports whether err is a primary-key collision.
func IsDuplicatePrimaryKey(err error) bool {
	return hasCode(err, ErrCodeDuplicatePrimaryKey)
}

// IsMissingPrimaryKey reports whether err is a create without a key.
func IsMissingPrimaryKey(err error) bool {
	return hasCode(err, ErrCodeMissingPrimaryKey)
}

// IsUnresolvedRelation reports whether err is a non-nullable relation
// resolved with no reference.
func IsUnresolvedRelation(err error) bool {
	return hasCode(err, ErrCodeUnresolvedRelation)
}

// IsBrokenReference reports whether err is a dangling-reference failure.
func IsBrokenReference(err error) bool {
	return hasCode(err, ErrCodeBrokenReference)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func newConfigurationError(model, property, format string, args ...any) *Error {
	return &Error{
		Code:     ErrCodeConfiguration,
		Message:  fmt.Sprintf(format, args...),
		Model:    model,
		Property: property,
	}
}

func newDuplicateKeyError(model, key string) *Error {
	return &Error{
		Code:    ErrCodeDuplicatePrimaryKey,
		Message: fmt.Sprintf("primary key %q already exists", key),
		Model:   model,
		Key:     key,
	}
}

func newMissingKeyError(model, property string) *Error {
	return &Error{
		Code:     ErrCodeMissingPrimaryKey,
		Message:  "no value supplied and no default declared for the primary key",
		Model:    model,
		Property: property,
	}
}

func newNotFoundError(model string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: "no entity matched the query",
		Model:   model,
	}
}

func newUnresolvedRelationError(model, property string) *Error {
	return &Error{
		Code:     ErrCodeUnresolvedRelation,
		Message:  "non-nullable relation has no reference",
		Model:    model,
		Property: property,
	}
}

func newBrokenReferenceError(model, property, key string) *Error {
	return &Error{
		Code:     ErrCodeBrokenReference,
		Message:  fmt.Sprintf("reference to %q is absent from the target store", key),
		Model:    model,
		Property: property,
		Key:      key,
	}
}
