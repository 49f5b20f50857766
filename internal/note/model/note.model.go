package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole maps a claim or config value to a Role. Anything that is not
// ADMIN is treated as USER.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Notebook struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	UserID     string    `json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Note holds its tags and notebook by value as loaded from the store; tags
// and notebooks never reference notes back.
type Note struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	UserID     string    `json:"userId"`
	NotebookID *int64    `json:"notebookId"`
	Notebook   *Notebook `json:"notebook"`
	Tags       []Tag     `json:"tags"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type CreateNoteRequest struct {
	Name       string   `json:"name"`
	Content    string   `json:"content"`
	NotebookID *int64   `json:"notebookId"`
	Tags       []string `json:"tags"`
}

// UpdateNoteRequest replaces every field of a note; a nil Tags clears them.
type UpdateNoteRequest struct {
	Name       string   `json:"name"`
	Content    string   `json:"content"`
	NotebookID *int64   `json:"notebookId"`
	Tags       []string `json:"tags"`
}

// NoteFilter carries the optional listing filters. Zero values mean "absent".
type NoteFilter struct {
	Tags       []string
	UserID     string
	NotebookID *int64
}

const (
	NoteCreatedEvent = "NOTE_CREATED"
	NoteUpdatedEvent = "NOTE_UPDATED"
	NoteDeletedEvent = "NOTE_DELETED"
)

// NoteEvent is published after a note write commits.
type NoteEvent struct {
	Type          string    `json:"type"`
	NoteID        int64     `json:"note_id"`
	UserID        string    `json:"user_id"`
	PreviousOwner string    `json:"previous_owner,omitempty"`
	Note          *Note     `json:"note,omitempty"`
	At            time.Time `json:"at"`
}
