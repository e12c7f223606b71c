package order

import (
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
)

// ValidationError indicates a missing or invalid request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError indicates that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func orderNotFound(id int64) *NotFoundError {
	return &NotFoundError{Entity: "order", ID: strconv.FormatInt(id, 10)}
}

// storageErr classifies err for op. Errors that are already part of the
// taxonomy pass through unchanged.
func storageErr(op string, err error) error {
	var (
		verr *ValidationError
		nerr *NotFoundError
		serr *StorageError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &nerr), errors.As(err, &serr):
		return err
	default:
		return &StorageError{Op: op, Err: err}
	}
}
