package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("access denied")
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrTagExists is returned by TagStore.Create when another writer
	// inserted the same name first. It never leaves this package.
	ErrTagExists = errors.New("tag already exists")

	// ErrNotebookNotFound is returned by NoteStore.Save when the referenced
	// notebook does not exist.
	ErrNotebookNotFound = errors.New("notebook not found")
)

// ValidationError lists every rejected field with a reason.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = reason
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func noteNotFound(id int64) error {
	return fmt.Errorf("note not found with id: %d: %w", id, ErrNotFound)
}

func accessDenied(id int64) error {
	return fmt.Errorf("you do not have permission to access note with id: %d: %w", id, ErrUnauthorized)
}
