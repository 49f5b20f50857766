package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"notevault/internal/note/model"
)

// memNotes is an in-memory NoteStore that records which query ran.
type memNotes struct {
	mu     sync.Mutex
	notes  map[int64]model.Note
	nextID int64
	calls  []string

	notebooks map[int64]bool
	err       error
}

func newMemNotes() *memNotes {
	return &memNotes{notes: map[int64]model.Note{}, notebooks: map[int64]bool{}}
}

func (m *memNotes) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.err
}

func (m *memNotes) put(n model.Note) model.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	n.ID = m.nextID
	m.notes[n.ID] = n
	return n
}

func (m *memNotes) FindByID(_ context.Context, id int64) (*model.Note, error) {
	if err := m.record("FindByID"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (m *memNotes) DeleteByID(_ context.Context, id int64) error {
	if err := m.record("DeleteByID"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[id]; !ok {
		return ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

func (m *memNotes) Save(_ context.Context, note *model.Note) (*model.Note, error) {
	if err := m.record("Save"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if note.NotebookID != nil && !m.notebooks[*note.NotebookID] {
		return nil, ErrNotebookNotFound
	}
	now := time.Now()
	n := *note
	if n.ID == 0 {
		m.nextID++
		n.ID = m.nextID
		n.CreatedAt = now
	} else if _, ok := m.notes[n.ID]; !ok {
		return nil, ErrNotFound
	}
	n.ModifiedAt = now
	m.notes[n.ID] = n
	return &n, nil
}

func (m *memNotes) filter(call string, keep func(model.Note) bool) ([]model.Note, error) {
	if err := m.record(call); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Note
	for _, n := range m.notes {
		if keep(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func hasAnyTag(n model.Note, names []string) bool {
	for _, t := range n.Tags {
		for _, name := range names {
			if t.Name == name {
				return true
			}
		}
	}
	return false
}

func inNotebook(n model.Note, id int64) bool {
	return n.NotebookID != nil && *n.NotebookID == id
}

func (m *memNotes) FindAll(context.Context) ([]model.Note, error) {
	return m.filter("FindAll", func(model.Note) bool { return true })
}

func (m *memNotes) FindByUserID(_ context.Context, userID string) ([]model.Note, error) {
	return m.filter("FindByUserID", func(n model.Note) bool { return n.UserID == userID })
}

func (m *memNotes) FindByNotebookID(_ context.Context, id int64) ([]model.Note, error) {
	return m.filter("FindByNotebookID", func(n model.Note) bool { return inNotebook(n, id) })
}

func (m *memNotes) FindByTagNames(_ context.Context, tags []string) ([]model.Note, error) {
	return m.filter("FindByTagNames", func(n model.Note) bool { return hasAnyTag(n, tags) })
}

func (m *memNotes) FindByTagNamesAndUserID(_ context.Context, tags []string, userID string) ([]model.Note, error) {
	return m.filter("FindByTagNamesAndUserID", func(n model.Note) bool {
		return hasAnyTag(n, tags) && n.UserID == userID
	})
}

func (m *memNotes) FindByTagNamesAndNotebookID(_ context.Context, tags []string, id int64) ([]model.Note, error) {
	return m.filter("FindByTagNamesAndNotebookID", func(n model.Note) bool {
		return hasAnyTag(n, tags) && inNotebook(n, id)
	})
}

func (m *memNotes) FindByUserIDAndNotebookID(_ context.Context, userID string, id int64) ([]model.Note, error) {
	return m.filter("FindByUserIDAndNotebookID", func(n model.Note) bool {
		return n.UserID == userID && inNotebook(n, id)
	})
}

func (m *memNotes) FindByTagNamesAndUserIDAndNotebookID(_ context.Context, tags []string, userID string, id int64) ([]model.Note, error) {
	return m.filter("FindByTagNamesAndUserIDAndNotebookID", func(n model.Note) bool {
		return hasAnyTag(n, tags) && n.UserID == userID && inNotebook(n, id)
	})
}

// memTags is an in-memory TagStore. beforeCreate lets a test inject a
// competing insert between lookup and create.
type memTags struct {
	mu           sync.Mutex
	byName       map[string]model.Tag
	nextID       int64
	finds        int
	creates      int
	beforeCreate func(name string)
	err          error
}

func newMemTags() *memTags {
	return &memTags{byName: map[string]model.Tag{}}
}

func (m *memTags) insert(name string) model.Tag {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := model.Tag{ID: m.nextID, Name: name}
	m.byName[name] = t
	return t
}

func (m *memTags) FindByName(_ context.Context, name string) (*model.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *memTags) Create(_ context.Context, name string) (*model.Tag, error) {
	if m.beforeCreate != nil {
		m.beforeCreate(name)
	}
	m.mu.Lock()
	m.creates++
	if _, ok := m.byName[name]; ok {
		m.mu.Unlock()
		return nil, ErrTagExists
	}
	m.mu.Unlock()
	t := m.insert(name)
	return &t, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.NoteEvent
}

func (p *recordingPublisher) Publish(e model.NoteEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

// memTx snapshots the tag store on begin and restores it when fn fails.
type memTx struct {
	tags      *memTags
	begins    int
	rollbacks int
}

func (m *memTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.begins++
	m.tags.mu.Lock()
	byName := make(map[string]model.Tag, len(m.tags.byName))
	for k, v := range m.tags.byName {
		byName[k] = v
	}
	nextID := m.tags.nextID
	m.tags.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.rollbacks++
		m.tags.mu.Lock()
		m.tags.byName, m.tags.nextID = byName, nextID
		m.tags.mu.Unlock()
		return err
	}
	return nil
}
