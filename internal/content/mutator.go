package content

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/skyroutes/flightdeck/internal/errclass"
	"github.com/skyroutes/flightdeck/internal/model"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// CommitEvent describes one committed mutation, for cache invalidation.
type CommitEvent struct {
	Op   Op
	ID   model.PostID
	Slug string
}

func tempID() model.PostID {
	return model.PostID(fmt.Sprintf("%s%d", model.TempIDPrefix, time.Now().UnixMilli()))
}

// CreatePost prepends an optimistic placeholder to the listing, issues the
// create, and replaces the placeholder with the server document on commit.
// On failure the listing is rolled back verbatim and the classified error
// is both stored in the slot and returned.
//
// Mutations are not cancellable once started: they run to commit or
// rollback so the optimistic flag can never be left set.
func (s *Store) CreatePost(ctx context.Context, draft *model.PostDraft) (*model.Post, error) {
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	placeholderID := tempID()
	placeholder := model.PreviewFromDraft(placeholderID, draft)

	s.mu.Lock()
	snapshot := slices.Clone(s.list.Data)
	s.list.Data = append([]model.PostPreview{placeholder}, s.list.Data...)
	s.list.Optimistic = true
	s.mu.Unlock()

	created, err := s.client.CreatePost(ctx, draft)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.list.Data = snapshot
		s.list.Optimistic = false
		rec := errclass.Classify(err)
		s.list.Err = rec
		contentLogger.Error().Err(err).Str("title", draft.Title).Msg("Create rolled back")
		return nil, rec
	}

	data := slices.Clone(s.list.Data)
	replaced := false
	for i := range data {
		if data[i].ID == placeholderID {
			data[i] = created.PostPreview
			replaced = true
			break
		}
	}
	if !replaced {
		data = append([]model.PostPreview{created.PostPreview}, data...)
	}
	s.list.Data = data
	s.list.Optimistic = false
	s.list.Err = nil
	s.list.LastUpdated = time.Now().UTC()

	s.notifyCommit(CommitEvent{Op: OpCreate, ID: created.ID, Slug: created.Slug})
	return created, nil
}

// UpdatePost patches the matching listing entry (and the detail slot when
// it holds the same post) immediately, then reconciles with the server's
// authoritative record on commit or restores both snapshots on failure.
func (s *Store) UpdatePost(ctx context.Context, id model.PostID, patch *model.PostPatch) (*model.Post, error) {
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	s.mu.Lock()
	listSnapshot := slices.Clone(s.list.Data)
	var detailSnapshot *model.Post
	detailTouched := s.detail.Data != nil && s.detail.Data.ID == id
	if detailTouched {
		post := *s.detail.Data
		detailSnapshot = &post
	}

	data := slices.Clone(s.list.Data)
	for i := range data {
		if data[i].ID == id {
			patch.ApplyToPreview(&data[i])
			break
		}
	}
	s.list.Data = data
	s.list.Optimistic = true

	if detailTouched {
		post := *s.detail.Data
		patch.ApplyToPost(&post)
		s.detail.Data = &post
		s.detail.Optimistic = true
	}
	s.mu.Unlock()

	updated, err := s.client.UpdatePost(ctx, id, patch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.list.Data = listSnapshot
		s.list.Optimistic = false
		rec := errclass.Classify(err)
		s.list.Err = rec
		if detailTouched {
			s.detail.Data = detailSnapshot
			s.detail.Optimistic = false
			s.detail.Err = rec
		}
		contentLogger.Error().Err(err).Str("post_id", string(id)).Msg("Update rolled back")
		return nil, rec
	}

	data = slices.Clone(s.list.Data)
	for i := range data {
		if data[i].ID == id {
			data[i] = updated.PostPreview
			break
		}
	}
	s.list.Data = data
	s.list.Optimistic = false
	s.list.Err = nil
	s.list.LastUpdated = time.Now().UTC()

	if detailTouched {
		post := *updated
		s.detail.Data = &post
		s.detail.Optimistic = false
		s.detail.Err = nil
		s.detail.LastUpdated = s.list.LastUpdated
	}

	s.notifyCommit(CommitEvent{Op: OpUpdate, ID: updated.ID, Slug: updated.Slug})
	return updated, nil
}

// DeletePost removes the matching entry immediately and clears the detail
// slot when it holds the same post. On failure the entry reappears.
func (s *Store) DeletePost(ctx context.Context, id model.PostID) error {
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	s.mu.Lock()
	listSnapshot := slices.Clone(s.list.Data)
	var deletedSlug string
	data := slices.DeleteFunc(slices.Clone(s.list.Data), func(p model.PostPreview) bool {
		if p.ID == id {
			deletedSlug = p.Slug
			return true
		}
		return false
	})
	s.list.Data = data
	s.list.Optimistic = true

	var detailSnapshot *model.Post
	detailTouched := s.detail.Data != nil && s.detail.Data.ID == id
	if detailTouched {
		detailSnapshot = s.detail.Data
		if deletedSlug == "" {
			deletedSlug = detailSnapshot.Slug
		}
		s.detail.Data = nil
		s.detail.Optimistic = true
	}
	s.mu.Unlock()

	err := s.client.DeletePost(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.list.Data = listSnapshot
		s.list.Optimistic = false
		rec := errclass.Classify(err)
		s.list.Err = rec
		if detailTouched {
			s.detail.Data = detailSnapshot
			s.detail.Optimistic = false
			s.detail.Err = rec
		}
		contentLogger.Error().Err(err).Str("post_id", string(id)).Msg("Delete rolled back")
		return rec
	}

	s.list.Optimistic = false
	s.list.Err = nil
	s.list.LastUpdated = time.Now().UTC()
	if detailTouched {
		s.detail.Optimistic = false
		s.detail.Err = nil
		s.detail.LastUpdated = s.list.LastUpdated
	}

	s.notifyCommit(CommitEvent{Op: OpDelete, ID: id, Slug: deletedSlug})
	return nil
}
