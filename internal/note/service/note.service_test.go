package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"notevault/internal/note/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = model.Identity{UserID: "alice", Role: model.RoleUser}
	bob   = model.Identity{UserID: "bob", Role: model.RoleUser}
	admin = model.Identity{UserID: "root", Role: model.RoleAdmin}
)

type fixture struct {
	notes  *memNotes
	tags   *memTags
	tx     *memTx
	events *recordingPublisher
	svc    *NoteService
}

func newFixture() *fixture {
	f := &fixture{notes: newMemNotes(), tags: newMemTags(), events: &recordingPublisher{}}
	f.tx = &memTx{tags: f.tags}
	f.svc = NewNoteService(f.notes, f.tags, f.tx, f.events)
	return f
}

func TestCreateSanitizesAndAssignsOwner(t *testing.T) {
	f := newFixture()

	note, err := f.svc.Create(context.Background(), model.CreateNoteRequest{
		Name:    "<script>x</script>Title",
		Content: "<p>ok</p><script>bad()</script>",
		Tags:    []string{"work", "<b>work</b>"},
	}, alice)
	require.NoError(t, err)

	assert.NotZero(t, note.ID)
	assert.Equal(t, "xTitle", note.Name)
	assert.Equal(t, "<p>ok</p>bad()", note.Content)
	assert.Equal(t, "alice", note.UserID)
	require.Len(t, note.Tags, 1)
	assert.Equal(t, "work", note.Tags[0].Name)

	stored, err := f.notes.FindByID(context.Background(), note.ID)
	require.NoError(t, err)
	assert.Equal(t, "xTitle", stored.Name)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, model.NoteCreatedEvent, f.events.events[0].Type)
	assert.Equal(t, note.ID, f.events.events[0].NoteID)
}

func TestCreateWithoutTags(t *testing.T) {
	f := newFixture()

	note, err := f.svc.Create(context.Background(), model.CreateNoteRequest{Name: "Test Note", Content: "Some content"}, alice)
	require.NoError(t, err)
	assert.Empty(t, note.Tags)
	assert.Zero(t, f.tags.finds)
}

func TestCreateValidationHappensBeforeWrites(t *testing.T) {
	cases := []struct {
		name   string
		req    model.CreateNoteRequest
		fields []string
	}{
		{"blank name", model.CreateNoteRequest{Name: "  ", Content: "c"}, []string{"name"}},
		{"markup-only name", model.CreateNoteRequest{Name: "<b></b>", Content: "c"}, []string{"name"}},
		{"long name", model.CreateNoteRequest{Name: strings.Repeat("é", MaxNameLength+1), Content: "c"}, []string{"name"}},
		{"blank content", model.CreateNoteRequest{Name: "n", Content: "\t"}, []string{"content"}},
		{"content only dangerous tags", model.CreateNoteRequest{Name: "n", Content: "<script></script>"}, []string{"content"}},
		{"bad notebook id", model.CreateNoteRequest{Name: "n", Content: "c", NotebookID: ptrInt(0)}, []string{"notebookId"}},
		{"everything", model.CreateNoteRequest{Tags: []string{"t"}}, []string{"name", "content"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()

			_, err := f.svc.Create(context.Background(), tc.req, alice)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			for _, field := range tc.fields {
				assert.Contains(t, verr.Fields, field)
			}
			assert.Len(t, verr.Fields, len(tc.fields))
			assert.Empty(t, f.notes.calls)
			assert.Zero(t, f.tags.creates)
			assert.Empty(t, f.events.events)
		})
	}
}

func TestCreateNameLengthCountsCodePointsAfterSanitizing(t *testing.T) {
	f := newFixture()
	name := "<b>" + strings.Repeat("ü", MaxNameLength) + "</b>"

	note, err := f.svc.Create(context.Background(), model.CreateNoteRequest{Name: name, Content: "c"}, alice)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ü", MaxNameLength), note.Name)
}

func TestCreateUnknownNotebookIsValidationError(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), model.CreateNoteRequest{Name: "n", Content: "c", NotebookID: ptrInt(42)}, alice)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["notebookId"], "42")
}

func TestCreateWithNotebook(t *testing.T) {
	f := newFixture()
	f.notes.notebooks[3] = true

	note, err := f.svc.Create(context.Background(), model.CreateNoteRequest{Name: "n", Content: "c", NotebookID: ptrInt(3)}, alice)
	require.NoError(t, err)
	require.NotNil(t, note.NotebookID)
	assert.Equal(t, int64(3), *note.NotebookID)
}

func TestGet(t *testing.T) {
	f := newFixture()
	n := f.notes.put(model.Note{Name: "Test Note", UserID: "alice"})

	got, err := f.svc.Get(context.Background(), n.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "Test Note", got.Name)

	_, err = f.svc.Get(context.Background(), n.ID, admin)
	assert.NoError(t, err)

	_, err = f.svc.Get(context.Background(), n.ID, bob)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Get(context.Background(), 99, alice)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "note not found with id: 99")
}

func TestUpdateReplacesEverythingAndReassignsOwner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	n, err := f.svc.Create(ctx, model.CreateNoteRequest{Name: "old", Content: "old", Tags: []string{"a", "b"}}, alice)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, n.ID, model.UpdateNoteRequest{
		Name:    "<i>new</i>",
		Content: `<div onclick="x()">new</div>`,
		Tags:    []string{"c"},
	}, admin)
	require.NoError(t, err)

	assert.Equal(t, n.ID, updated.ID)
	assert.Equal(t, "new", updated.Name)
	assert.Equal(t, `<div "x()">new</div>`, updated.Content)
	assert.Equal(t, "root", updated.UserID)
	require.Len(t, updated.Tags, 1)
	assert.Equal(t, "c", updated.Tags[0].Name)

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, model.NoteUpdatedEvent, last.Type)
	assert.Equal(t, "alice", last.PreviousOwner)
	assert.Equal(t, "root", last.UserID)

	// The former owner no longer passes the guard.
	_, err = f.svc.Get(ctx, n.ID, alice)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateWithNilTagsClearsThem(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	n, err := f.svc.Create(ctx, model.CreateNoteRequest{Name: "n", Content: "c", Tags: []string{"a"}}, alice)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, n.ID, model.UpdateNoteRequest{Name: "n", Content: "c"}, alice)
	require.NoError(t, err)
	assert.Empty(t, updated.Tags)
	assert.Empty(t, f.events.events[len(f.events.events)-1].PreviousOwner)
}

func TestUpdateChecksExistenceThenOwnershipThenInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	n := f.notes.put(model.Note{Name: "n", Content: "c", UserID: "alice"})

	_, err := f.svc.Update(ctx, 404, model.UpdateNoteRequest{}, alice)
	assert.ErrorIs(t, err, ErrNotFound)

	// Invalid input from a stranger is still denied first.
	_, err = f.svc.Update(ctx, n.ID, model.UpdateNoteRequest{}, bob)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Update(ctx, n.ID, model.UpdateNoteRequest{Name: "<p></p>", Content: "c"}, alice)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	stored, _ := f.notes.FindByID(ctx, n.ID)
	assert.Equal(t, "n", stored.Name)
}

func TestUpdateRacingDeleteReportsNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	n := f.notes.put(model.Note{Name: "n", Content: "c", UserID: "alice"})
	f.tags.beforeCreate = func(string) {
		_ = f.notes.DeleteByID(ctx, n.ID)
	}

	_, err := f.svc.Update(ctx, n.ID, model.UpdateNoteRequest{Name: "n", Content: "c", Tags: []string{"t"}}, alice)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	n := f.notes.put(model.Note{Name: "n", UserID: "alice"})

	assert.ErrorIs(t, f.svc.Delete(ctx, n.ID, bob), ErrUnauthorized)
	assert.NotContains(t, f.notes.calls, "DeleteByID")

	require.NoError(t, f.svc.Delete(ctx, n.ID, alice))
	assert.ErrorIs(t, f.svc.Delete(ctx, n.ID, alice), ErrNotFound)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, model.NoteDeletedEvent, f.events.events[0].Type)
	assert.Nil(t, f.events.events[0].Note)
}

func TestAdminCanDeleteAnyNote(t *testing.T) {
	f := newFixture()
	n := f.notes.put(model.Note{Name: "n", UserID: "alice"})

	require.NoError(t, f.svc.Delete(context.Background(), n.ID, admin))
}

func TestList(t *testing.T) {
	f := newFixture()
	f.notes.put(model.Note{UserID: "alice"})
	f.notes.put(model.Note{UserID: "bob"})

	notes, err := f.svc.List(context.Background(), model.NoteFilter{}, bob)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "bob", notes[0].UserID)

	notes, err = f.svc.List(context.Background(), model.NoteFilter{UserID: "nobody"}, admin)
	require.NoError(t, err)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)
}

func TestStoreUnavailableIsSurfaced(t *testing.T) {
	f := newFixture()
	f.notes.err = errors.Join(ErrStoreUnavailable, errors.New("dial tcp: connection refused"))

	_, err := f.svc.Get(context.Background(), 1, alice)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = f.svc.Create(context.Background(), model.CreateNoteRequest{Name: "n", Content: "c"}, alice)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Len(t, f.notes.calls, 2, "no retries inside the service")
}

func TestValidationErrorMessageIsStable(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"name": "Name is required", "content": "Content is required"}}
	assert.Equal(t, "validation failed: content: Content is required; name: Name is required", err.Error())
}

func ptrInt(v int64) *int64 { return &v }

func TestFailedWriteDiscardsNewTags(t *testing.T) {
	f := newFixture()
	f.tags.insert("existing")

	_, err := f.svc.Create(context.Background(), model.CreateNoteRequest{
		Name:       "n",
		Content:    "c",
		NotebookID: ptrInt(404),
		Tags:       []string{"existing", "fresh"},
	}, alice)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, f.tx.rollbacks)
	_, err = f.tags.FindByName(context.Background(), "fresh")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.tags.FindByName(context.Background(), "existing")
	assert.NoError(t, err)

	n := f.notes.put(model.Note{Name: "n", UserID: "alice"})
	_, err = f.svc.Update(context.Background(), n.ID, model.UpdateNoteRequest{
		Name: "n", Content: "c", NotebookID: ptrInt(77), Tags: []string{"later"},
	}, alice)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, f.tx.rollbacks)
	_, err = f.tags.FindByName(context.Background(), "later")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.events.events)
}

func TestWritesRunInsideOneTransaction(t *testing.T) {
	f := newFixture()

	note, err := f.svc.Create(context.Background(), model.CreateNoteRequest{Name: "n", Content: "c", Tags: []string{"a"}}, alice)
	require.NoError(t, err)
	_, err = f.svc.Update(context.Background(), note.ID, model.UpdateNoteRequest{Name: "n2", Content: "c"}, alice)
	require.NoError(t, err)

	assert.Equal(t, 2, f.tx.begins)
	assert.Zero(t, f.tx.rollbacks)
}

func TestListRefusesUserWithoutID(t *testing.T) {
	f := newFixture()
	f.notes.put(model.Note{UserID: "bob"})

	notes, err := f.svc.List(context.Background(), model.NoteFilter{}, model.Identity{Role: model.RoleUser})

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Nil(t, notes)
	assert.Empty(t, f.notes.calls)
}
