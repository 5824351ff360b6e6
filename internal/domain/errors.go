package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the showroom. Structured error types below match them
// with errors.Is.
var (
	ErrDuplicateKey = errors.New("entry already exists")
	ErrNotFound     = errors.New("entry not found")
	ErrOutOfStock   = errors.New("entry out of stock")
	ErrInvalidEntry = errors.New("invalid entry")
	ErrAssetFetch   = errors.New("image source unavailable")
	ErrAssetWrite   = errors.New("image write failed")
	ErrAssetDelete  = errors.New("image delete failed")
	ErrPersistence  = errors.New("persistence write failed")
)

// KeyError reports a domain failure for a specific catalog key
type KeyError struct {
	Op  string
	Key Key
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key.String(), e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// NewDuplicateKeyError creates a KeyError wrapping ErrDuplicateKey
func NewDuplicateKeyError(op string, key Key) *KeyError {
	return &KeyError{Op: op, Key: key, Err: ErrDuplicateKey}
}

// NewNotFoundError creates a KeyError wrapping ErrNotFound
func NewNotFoundError(op string, key Key) *KeyError {
	return &KeyError{Op: op, Key: key, Err: ErrNotFound}
}

// NewOutOfStockError creates a KeyError wrapping ErrOutOfStock
func NewOutOfStockError(op string, key Key) *KeyError {
	return &KeyError{Op: op, Key: key, Err: ErrOutOfStock}
}

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every failed field of an entry
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is implements errors.Is support
func (v ValidationErrors) Is(target error) bool {
	return target == ErrInvalidEntry
}

// AssetError reports a failure storing or removing a managed image
type AssetError struct {
	Op     string
	Source string
	Err    error
	Cause  error
}

func (e *AssetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %q: %v: %v", e.Op, e.Source, e.Err, e.Cause)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Source, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the underlying cause
func (e *AssetError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// PersistenceError reports that a catalog or sales file could not be written.
// The in-memory state of the owning store still matches the last successful write.
type PersistenceError struct {
	File string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.File, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// IsDomainError reports whether err is an expected domain condition rather
// than an I/O failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrInvalidEntry)
}
