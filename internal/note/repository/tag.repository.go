package repository

import (
	"context"
	"database/sql"
	"errors"

	"notevault/internal/note/model"
	"notevault/internal/note/service"
	"notevault/pkg/logger"
)

type TagRepository struct {
	DB *sql.DB
}

func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{DB: db}
}

func (r *TagRepository) FindByName(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	err := conn(ctx, r.DB).QueryRowContext(ctx, "SELECT id, name FROM tags WHERE name = $1", name).Scan(&tag.ID, &tag.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, service.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to find tag %q: %v", name, err)
		return nil, classify(err)
	}
	return &tag, nil
}

// Create inserts a tag. A name that is already taken is reported as
// service.ErrTagExists so the caller can fetch the winning row. ON CONFLICT
// keeps a surrounding transaction usable after losing that race.
func (r *TagRepository) Create(ctx context.Context, name string) (*model.Tag, error) {
	tag := model.Tag{Name: name}
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"INSERT INTO tags (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id", name).Scan(&tag.ID)
	if errors.Is(err, sql.ErrNoRows) || isPQCode(err, pqUniqueViolation) {
		return nil, service.ErrTagExists
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to create tag %q: %v", name, err)
		return nil, classify(err)
	}
	return &tag, nil
}
