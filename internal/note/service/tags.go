package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"notevault/internal/note/model"
	"notevault/internal/note/sanitizer"
	"notevault/pkg/logger"
)

// TagResolver maps raw tag names to stored tags, creating missing ones.
type TagResolver struct {
	Tags TagStore
}

func NewTagResolver(tags TagStore) *TagResolver {
	return &TagResolver{Tags: tags}
}

// Resolve sanitizes each name, drops the ones that end up blank and returns
// one tag per distinct remaining name, ordered by name. Names match exactly,
// so "work" and "WORK" are different tags.
func (r *TagResolver) Resolve(ctx context.Context, names []string) ([]model.Tag, error) {
	if len(names) == 0 {
		return []model.Tag{}, nil
	}

	seen := make(map[string]struct{}, len(names))
	wanted := make([]string, 0, len(names))
	for _, raw := range names {
		name, ok := sanitizer.Plain(raw)
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		wanted = append(wanted, name)
	}
	sort.Strings(wanted)

	tags := make([]model.Tag, 0, len(wanted))
	ids := make(map[int64]struct{}, len(wanted))
	for _, name := range wanted {
		tag, err := r.getOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		if _, dup := ids[tag.ID]; dup {
			continue
		}
		ids[tag.ID] = struct{}{}
		tags = append(tags, *tag)
	}
	return tags, nil
}

func (r *TagResolver) getOrCreate(ctx context.Context, name string) (*model.Tag, error) {
	tag, err := r.Tags.FindByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	tag, err = r.Tags.Create(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, ErrTagExists) {
		return nil, err
	}

	// Lost a race with a concurrent insert of the same name.
	logger.Sugar.Debugf("Tag %q created concurrently, reusing existing row", name)
	tag, err = r.Tags.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("refetch tag %q after conflict: %w", name, err)
	}
	return tag, nil
}
