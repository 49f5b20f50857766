package service

import (
	"context"
	"fmt"
	"strings"

	"notevault/internal/note/model"
)

// Authorize allows admins and the note's owner. Any other caller gets an
// error wrapping ErrUnauthorized; missing notes are reported separately as
// ErrNotFound by the caller, so the two stay distinguishable.
func Authorize(note *model.Note, caller model.Identity) error {
	if caller.IsAdmin() {
		return nil
	}
	if id := strings.TrimSpace(caller.UserID); id != "" && id == note.UserID {
		return nil
	}
	return accessDenied(note.ID)
}

// SelectNotes picks the one store query matching which filters are present.
// Non-admin callers are always scoped to their own notes, and one without a
// user id is refused rather than falling through to FindAll.
func SelectNotes(ctx context.Context, store NoteStore, filter model.NoteFilter, caller model.Identity) ([]model.Note, error) {
	userID := strings.TrimSpace(filter.UserID)
	if !caller.IsAdmin() {
		userID = strings.TrimSpace(caller.UserID)
		if userID == "" {
			return nil, fmt.Errorf("list notes without a user id: %w", ErrUnauthorized)
		}
	}
	tags := nonBlank(filter.Tags)

	hasTags := len(tags) > 0
	hasUser := userID != ""
	hasNotebook := filter.NotebookID != nil

	switch {
	case hasTags && hasUser && hasNotebook:
		return store.FindByTagNamesAndUserIDAndNotebookID(ctx, tags, userID, *filter.NotebookID)
	case hasTags && hasUser:
		return store.FindByTagNamesAndUserID(ctx, tags, userID)
	case hasTags && hasNotebook:
		return store.FindByTagNamesAndNotebookID(ctx, tags, *filter.NotebookID)
	case hasUser && hasNotebook:
		return store.FindByUserIDAndNotebookID(ctx, userID, *filter.NotebookID)
	case hasTags:
		return store.FindByTagNames(ctx, tags)
	case hasUser:
		return store.FindByUserID(ctx, userID)
	case hasNotebook:
		return store.FindByNotebookID(ctx, *filter.NotebookID)
	default:
		return store.FindAll(ctx)
	}
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
