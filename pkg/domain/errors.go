package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed write or query argument.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q %s", e.Field, e.Reason)
}

// PermissionError reports a write or delete attempted against a locked pack
// or by an unprivileged actor when proxying is disabled.
type PermissionError struct {
	Op   string
	Pack string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission: %s denied on pack %q", e.Op, e.Pack)
}

// NotFoundError reports an identifier lookup that resolved to no document.
type NotFoundError struct {
	Pack string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: document %q in pack %q", e.ID, e.Pack)
}

// LookupError reports a malformed reference that cannot be resolved to a
// pack/document pair.
type LookupError struct {
	Ref    string
	Reason string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup: reference %q %s", e.Ref, e.Reason)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsLookup(err error) bool {
	var target *LookupError
	return errors.As(err, &target)
}
