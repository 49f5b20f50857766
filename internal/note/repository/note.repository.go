package repository

import (
	"context"
	"database/sql"
	"fmt"

	"notevault/internal/note/model"
	"notevault/internal/note/service"
	"notevault/pkg/logger"

	"github.com/lib/pq"
)

const selectNotes = `
	SELECT n.id, n.name, n.content, n.user_id, n.notebook_id, n.created_at, n.modified_at,
		nb.id, nb.name, nb.user_id, nb.created_at, nb.modified_at
	FROM note n
	LEFT JOIN notebook nb ON nb.id = n.notebook_id`

// Matches notes carrying any of the names in the array parameter. Selecting
// ids through IN keeps each note once however many tags match.
const tagFilter = `n.id IN (
		SELECT nt.note_id FROM note_tags nt JOIN tags t ON t.id = nt.tag_id WHERE t.name = ANY(%s))`

type NoteRepository struct {
	DB *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{DB: db}
}

func (r *NoteRepository) FindByID(ctx context.Context, id int64) (*model.Note, error) {
	notes, err := r.query(ctx, "WHERE n.id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, service.ErrNotFound
	}
	return &notes[0], nil
}

func (r *NoteRepository) DeleteByID(ctx context.Context, id int64) error {
	result, err := conn(ctx, r.DB).ExecContext(ctx, "DELETE FROM note WHERE id = $1", id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete note %d: %v", id, err)
		return classify(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return service.ErrNotFound
	}
	return nil
}

// Save writes the note row and replaces its tag links in one transaction,
// joining the caller's when ctx carries one, then reloads it so the notebook
// and timestamps come from the database.
func (r *NoteRepository) Save(ctx context.Context, note *model.Note) (*model.Note, error) {
	var id int64
	err := NewTransactor(r.DB).InTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.DB)

		var err error
		if id, err = writeNote(ctx, db, note); err != nil {
			return err
		}

		if _, err := db.ExecContext(ctx, "DELETE FROM note_tags WHERE note_id = $1", id); err != nil {
			logger.Sugar.Errorf("Failed to clear tags for note %d: %v", id, err)
			return classify(err)
		}
		if len(note.Tags) == 0 {
			return nil
		}
		tagIDs := make([]int64, 0, len(note.Tags))
		for _, t := range note.Tags {
			tagIDs = append(tagIDs, t.ID)
		}
		_, err = db.ExecContext(ctx,
			"INSERT INTO note_tags (note_id, tag_id) SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING",
			id, pq.Array(tagIDs))
		if err != nil {
			logger.Sugar.Errorf("Failed to link tags for note %d: %v", id, err)
			return classify(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func writeNote(ctx context.Context, db executor, note *model.Note) (int64, error) {
	var notebookID sql.NullInt64
	if note.NotebookID != nil {
		notebookID = sql.NullInt64{Int64: *note.NotebookID, Valid: true}
	}

	var err error
	id := note.ID
	if id == 0 {
		err = db.QueryRowContext(ctx, `
			INSERT INTO note (name, content, user_id, notebook_id, created_at, modified_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			RETURNING id`,
			note.Name, note.Content, note.UserID, notebookID).Scan(&id)
	} else {
		var result sql.Result
		result, err = db.ExecContext(ctx, `
			UPDATE note SET name = $1, content = $2, user_id = $3, notebook_id = $4, modified_at = NOW()
			WHERE id = $5`,
			note.Name, note.Content, note.UserID, notebookID, id)
		if err == nil {
			var n int64
			if n, err = result.RowsAffected(); err == nil && n == 0 {
				return 0, service.ErrNotFound
			}
		}
	}

	if isPQCode(err, pqForeignKeyViolation) {
		return 0, service.ErrNotebookNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to write note %d: %v", id, err)
		return 0, classify(err)
	}
	return id, nil
}

func (r *NoteRepository) FindAll(ctx context.Context) ([]model.Note, error) {
	return r.query(ctx, "")
}

func (r *NoteRepository) FindByUserID(ctx context.Context, userID string) ([]model.Note, error) {
	return r.query(ctx, "WHERE n.user_id = $1", userID)
}

func (r *NoteRepository) FindByNotebookID(ctx context.Context, notebookID int64) ([]model.Note, error) {
	return r.query(ctx, "WHERE n.notebook_id = $1", notebookID)
}

func (r *NoteRepository) FindByTagNames(ctx context.Context, tags []string) ([]model.Note, error) {
	return r.query(ctx, "WHERE "+fmt.Sprintf(tagFilter, "$1"), pq.Array(tags))
}

func (r *NoteRepository) FindByTagNamesAndUserID(ctx context.Context, tags []string, userID string) ([]model.Note, error) {
	return r.query(ctx, "WHERE "+fmt.Sprintf(tagFilter, "$1")+" AND n.user_id = $2", pq.Array(tags), userID)
}

func (r *NoteRepository) FindByTagNamesAndNotebookID(ctx context.Context, tags []string, notebookID int64) ([]model.Note, error) {
	return r.query(ctx, "WHERE "+fmt.Sprintf(tagFilter, "$1")+" AND n.notebook_id = $2", pq.Array(tags), notebookID)
}

func (r *NoteRepository) FindByUserIDAndNotebookID(ctx context.Context, userID string, notebookID int64) ([]model.Note, error) {
	return r.query(ctx, "WHERE n.user_id = $1 AND n.notebook_id = $2", userID, notebookID)
}

func (r *NoteRepository) FindByTagNamesAndUserIDAndNotebookID(ctx context.Context, tags []string, userID string, notebookID int64) ([]model.Note, error) {
	return r.query(ctx,
		"WHERE "+fmt.Sprintf(tagFilter, "$1")+" AND n.user_id = $2 AND n.notebook_id = $3",
		pq.Array(tags), userID, notebookID)
}

// query loads the matching notes and then all of their tags with a single
// second query.
func (r *NoteRepository) query(ctx context.Context, where string, args ...interface{}) ([]model.Note, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx, selectNotes+" "+where+" ORDER BY n.id", args...)
	if err != nil {
		logger.Sugar.Errorf("Failed to query notes: %v", err)
		return nil, classify(err)
	}
	defer rows.Close()

	notes := []model.Note{}
	index := map[int64]int{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			logger.Sugar.Errorf("Failed to scan note: %v", err)
			return nil, classify(err)
		}
		index[note.ID] = len(notes)
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	if len(notes) == 0 {
		return notes, nil
	}

	if err := r.attachTags(ctx, notes, index); err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *NoteRepository) attachTags(ctx context.Context, notes []model.Note, index map[int64]int) error {
	ids := make([]int64, 0, len(notes))
	for _, n := range notes {
		ids = append(ids, n.ID)
	}

	rows, err := conn(ctx, r.DB).QueryContext(ctx, `
		SELECT nt.note_id, t.id, t.name
		FROM note_tags nt JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id = ANY($1)
		ORDER BY t.name`, pq.Array(ids))
	if err != nil {
		logger.Sugar.Errorf("Failed to load tags for %d notes: %v", len(ids), err)
		return classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var noteID int64
		var tag model.Tag
		if err := rows.Scan(&noteID, &tag.ID, &tag.Name); err != nil {
			return classify(err)
		}
		if i, ok := index[noteID]; ok {
			notes[i].Tags = append(notes[i].Tags, tag)
		}
	}
	return classify(rows.Err())
}

func scanNote(rows *sql.Rows) (model.Note, error) {
	var (
		n          model.Note
		notebookID sql.NullInt64
		nbID       sql.NullInt64
		nbName     sql.NullString
		nbUserID   sql.NullString
		nbCreated  sql.NullTime
		nbModified sql.NullTime
	)
	err := rows.Scan(&n.ID, &n.Name, &n.Content, &n.UserID, &notebookID, &n.CreatedAt, &n.ModifiedAt,
		&nbID, &nbName, &nbUserID, &nbCreated, &nbModified)
	if err != nil {
		return n, err
	}

	n.Tags = []model.Tag{}
	if notebookID.Valid {
		id := notebookID.Int64
		n.NotebookID = &id
	}
	if nbID.Valid {
		n.Notebook = &model.Notebook{
			ID:         nbID.Int64,
			Name:       nbName.String,
			UserID:     nbUserID.String,
			CreatedAt:  nbCreated.Time,
			ModifiedAt: nbModified.Time,
		}
	}
	return n, nil
}

var (
	_ service.NoteStore = (*NoteRepository)(nil)
	_ service.TagStore  = (*TagRepository)(nil)
)
