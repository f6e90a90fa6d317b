package store

import (
	"errors"
	"fmt"

	"github.com/ziadkadry99/semstore/internal/embed"
)

// Sentinel errors for the store package. Callers match against these with
// errors.Is; the concrete error value carries the operation and offending key.
var (
	// ErrDuplicateID is returned when adding a document whose id already exists.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrDuplicateName is returned when creating a store whose name already exists.
	ErrDuplicateName = errors.New("duplicate store name")

	// ErrNotFound is returned when a store or document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrProviderUnavailable is returned when the embedding backend is
	// unreachable, misconfigured, or times out. Aliased from the embed
	// package, which owns the providers that raise it.
	ErrProviderUnavailable = embed.ErrProviderUnavailable

	// ErrCorruptSnapshot is returned when on-disk data fails structural validation.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrInvalidArgument is returned for malformed input such as an empty id,
	// a negative result count, or non-scalar metadata.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error wraps a sentinel error with the operation and the key it failed on.
type Error struct {
	Op  string // operation name, e.g. "add" or "create"
	Key string // offending store name or document id
	Err error  // underlying sentinel, possibly wrapped further
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Key == "":
		return fmt.Sprintf("semstore: %v", e.Err)
	case e.Key == "":
		return fmt.Sprintf("semstore: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("semstore: %s %q: %v", e.Op, e.Key, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return errors.Is(e.Err, target) }

func opErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Key: key, Err: err}
}
