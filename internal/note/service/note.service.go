package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"notevault/internal/note/model"
	"notevault/internal/note/sanitizer"
)

const MaxNameLength = 255

type NoteService struct {
	Notes  NoteStore
	Tags   *TagResolver
	Tx     Transactor
	Events Publisher
}

// NewNoteService wires the service. A nil transactor runs writes without a
// surrounding transaction; a nil publisher disables note events.
func NewNoteService(notes NoteStore, tags TagStore, tx Transactor, events Publisher) *NoteService {
	if tx == nil {
		tx = directTx{}
	}
	if events == nil {
		events = noopPublisher{}
	}
	return &NoteService{Notes: notes, Tags: NewTagResolver(tags), Tx: tx, Events: events}
}

func (s *NoteService) List(ctx context.Context, filter model.NoteFilter, caller model.Identity) ([]model.Note, error) {
	notes, err := SelectNotes(ctx, s.Notes, filter, caller)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []model.Note{}
	}
	return notes, nil
}

func (s *NoteService) Get(ctx context.Context, id int64, caller model.Identity) (*model.Note, error) {
	note, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(note, caller); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteService) Create(ctx context.Context, req model.CreateNoteRequest, caller model.Identity) (*model.Note, error) {
	name, content, err := sanitizeFields(req.Name, req.Content, req.NotebookID)
	if err != nil {
		return nil, err
	}

	var saved *model.Note
	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		tags, err := s.Tags.Resolve(ctx, req.Tags)
		if err != nil {
			return err
		}
		saved, err = s.save(ctx, &model.Note{
			Name:       name,
			Content:    content,
			UserID:     caller.UserID,
			NotebookID: req.NotebookID,
			Tags:       tags,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(model.NoteCreatedEvent, saved, "")
	return saved, nil
}

// Update fully replaces the note. Ownership is checked against the stored
// owner and then handed to the caller.
func (s *NoteService) Update(ctx context.Context, id int64, req model.UpdateNoteRequest, caller model.Identity) (*model.Note, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(existing, caller); err != nil {
		return nil, err
	}

	name, content, err := sanitizeFields(req.Name, req.Content, req.NotebookID)
	if err != nil {
		return nil, err
	}

	previousOwner := existing.UserID
	var saved *model.Note
	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		tags, err := s.Tags.Resolve(ctx, req.Tags)
		if err != nil {
			return err
		}
		existing.Name = name
		existing.Content = content
		existing.UserID = caller.UserID
		existing.NotebookID = req.NotebookID
		existing.Notebook = nil
		existing.Tags = tags

		saved, err = s.save(ctx, existing)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, noteNotFound(id)
		}
		return nil, err
	}

	if previousOwner == saved.UserID {
		previousOwner = ""
	}
	s.publish(model.NoteUpdatedEvent, saved, previousOwner)
	return saved, nil
}

func (s *NoteService) Delete(ctx context.Context, id int64, caller model.Identity) error {
	note, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := Authorize(note, caller); err != nil {
		return err
	}

	if err := s.Notes.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return noteNotFound(id)
		}
		return err
	}

	s.publish(model.NoteDeletedEvent, note, "")
	return nil
}

func (s *NoteService) load(ctx context.Context, id int64) (*model.Note, error) {
	note, err := s.Notes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, noteNotFound(id)
		}
		return nil, err
	}
	return note, nil
}

func (s *NoteService) save(ctx context.Context, note *model.Note) (*model.Note, error) {
	saved, err := s.Notes.Save(ctx, note)
	if err != nil {
		if errors.Is(err, ErrNotebookNotFound) {
			verr := &ValidationError{}
			verr.add("notebookId", fmt.Sprintf("notebook %d does not exist", *note.NotebookID))
			return nil, verr
		}
		return nil, err
	}
	return saved, nil
}

func (s *NoteService) publish(kind string, note *model.Note, previousOwner string) {
	event := model.NoteEvent{
		Type:          kind,
		NoteID:        note.ID,
		UserID:        note.UserID,
		PreviousOwner: previousOwner,
		At:            time.Now().UTC(),
	}
	if kind != model.NoteDeletedEvent {
		event.Note = note
	}
	s.Events.Publish(event)
}

// sanitizeFields validates the required fields and returns their sanitized
// form. All failing fields are reported together.
func sanitizeFields(rawName, rawContent string, notebookID *int64) (string, string, error) {
	verr := &ValidationError{}

	name, ok := sanitizer.Plain(rawName)
	switch {
	case strings.TrimSpace(rawName) == "":
		verr.add("name", "Name is required")
	case !ok:
		verr.add("name", "Name must contain text outside of markup")
	case utf8.RuneCountInString(name) > MaxNameLength:
		verr.add("name", fmt.Sprintf("Name must be %d characters or fewer", MaxNameLength))
	}

	var content string
	if strings.TrimSpace(rawContent) == "" {
		verr.add("content", "Content is required")
	} else if content = sanitizer.Rich(rawContent); content == "" {
		verr.add("content", "Content is empty after sanitization")
	}

	if notebookID != nil && *notebookID <= 0 {
		verr.add("notebookId", "Notebook ID must be positive")
	}

	if err := verr.orNil(); err != nil {
		return "", "", err
	}
	return name, content, nil
}
