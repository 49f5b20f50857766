package service

import (
	"context"

	"notevault/internal/note/model"
)

// NoteStore is the persistence contract for notes. Every read returns notes
// with tags and notebook already loaded. Methods taking tag names match a
// note carrying at least one of them and return each note once.
type NoteStore interface {
	FindByID(ctx context.Context, id int64) (*model.Note, error)
	// DeleteByID returns ErrNotFound when no row was removed.
	DeleteByID(ctx context.Context, id int64) error
	// Save inserts a note with ID 0 and updates it otherwise, replacing its
	// tag set. Timestamps are set by the store.
	Save(ctx context.Context, note *model.Note) (*model.Note, error)

	FindAll(ctx context.Context) ([]model.Note, error)
	FindByUserID(ctx context.Context, userID string) ([]model.Note, error)
	FindByNotebookID(ctx context.Context, notebookID int64) ([]model.Note, error)
	FindByTagNames(ctx context.Context, tags []string) ([]model.Note, error)
	FindByTagNamesAndUserID(ctx context.Context, tags []string, userID string) ([]model.Note, error)
	FindByTagNamesAndNotebookID(ctx context.Context, tags []string, notebookID int64) ([]model.Note, error)
	FindByUserIDAndNotebookID(ctx context.Context, userID string, notebookID int64) ([]model.Note, error)
	FindByTagNamesAndUserIDAndNotebookID(ctx context.Context, tags []string, userID string, notebookID int64) ([]model.Note, error)
}

type TagStore interface {
	// FindByName returns ErrNotFound when no tag has exactly this name.
	FindByName(ctx context.Context, name string) (*model.Tag, error)
	// Create returns ErrTagExists when the name is already taken.
	Create(ctx context.Context, name string) (*model.Tag, error)
}

// Transactor runs fn as one unit of work. Stores called with the context
// handed to fn take part in it, so a failed note write also discards tags
// created for that note.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type directTx struct{}

func (directTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Publisher receives note events after a successful write.
type Publisher interface {
	Publish(event model.NoteEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(model.NoteEvent) {}
