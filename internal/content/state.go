// Package content holds the client-side view of the CMS: an optimistic
// state store for the post listing and the currently viewed post, and the
// mutation flow that keeps them in sync with the backend.
package content

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/skyroutes/flightdeck/internal/errclass"
	"github.com/skyroutes/flightdeck/internal/model"
)

var contentLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	contentLogger = l
}

// Client is the remote content surface the store runs against.
// *cms.Client satisfies it.
type Client interface {
	ListPosts(ctx context.Context) ([]model.PostPreview, error)
	GetPostBySlug(ctx context.Context, slug string) (*model.Post, error)
	CreatePost(ctx context.Context, draft *model.PostDraft) (*model.Post, error)
	UpdatePost(ctx context.Context, id model.PostID, patch *model.PostPatch) (*model.Post, error)
	DeletePost(ctx context.Context, id model.PostID) error
}

// State wraps one slot's payload with its load/mutation status.
// Optimistic is true only between an optimistic apply and the matching
// commit or rollback.
type State[T any] struct {
	Data        T                `json:"data"`
	Loading     bool             `json:"isLoading"`
	Optimistic  bool             `json:"isOptimistic"`
	Err         *errclass.Record `json:"error,omitempty"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// Store owns the two state slots. All writes go through its methods;
// accessors return copies so callers never alias live state.
type Store struct {
	mu     sync.RWMutex
	list   State[[]model.PostPreview]
	detail State[*model.Post]

	// Generation counters let an aborted load discard its result when a
	// newer load has taken over the slot.
	listGen   uint64
	detailGen uint64

	// mutMu serializes mutations: one snapshot per slot at a time.
	mutMu sync.Mutex

	client         Client
	commitNotifier func(CommitEvent)
}

func NewStore(client Client) *Store {
	return &Store{client: client}
}

// SetCommitNotifier sets a function called after every successful mutation
// commit. Fired on its own goroutine; it cannot affect mutation state.
func (s *Store) SetCommitNotifier(notifier func(CommitEvent)) {
	s.commitNotifier = notifier
}

func (s *Store) notifyCommit(ev CommitEvent) {
	if s.commitNotifier != nil {
		go s.commitNotifier(ev)
	}
}

// List returns a copy of the listing slot.
func (s *Store) List() State[[]model.PostPreview] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.list
	state.Data = slices.Clone(s.list.Data)
	return state
}

// Detail returns a copy of the detail slot.
func (s *Store) Detail() State[*model.Post] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.detail
	if s.detail.Data != nil {
		post := *s.detail.Data
		state.Data = &post
	}
	return state
}

// LoadList refreshes the listing slot from the CMS. A failed refresh keeps
// the previous data; a cancelled one applies nothing.
func (s *Store) LoadList(ctx context.Context) error {
	s.mu.Lock()
	s.list.Loading = true
	s.listGen++
	gen := s.listGen
	s.mu.Unlock()

	posts, err := s.client.ListPosts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.listGen {
		// A newer load owns the slot now.
		return ctx.Err()
	}
	if ctx.Err() != nil {
		s.list.Loading = false
		return ctx.Err()
	}

	s.list.Loading = false
	if err != nil {
		rec := errclass.Classify(err)
		s.list.Err = rec
		contentLogger.Error().Err(err).Msg("Error loading post list")
		return rec
	}

	s.list.Data = posts
	s.list.Err = nil
	s.list.LastUpdated = time.Now().UTC()
	return nil
}

// LoadDetail refreshes the detail slot with the post for slug.
func (s *Store) LoadDetail(ctx context.Context, slug string) error {
	s.mu.Lock()
	s.detail.Loading = true
	s.detailGen++
	gen := s.detailGen
	s.mu.Unlock()

	post, err := s.client.GetPostBySlug(ctx, slug)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.detailGen {
		return ctx.Err()
	}
	if ctx.Err() != nil {
		s.detail.Loading = false
		return ctx.Err()
	}

	s.detail.Loading = false
	if err != nil {
		rec := errclass.Classify(err)
		s.detail.Err = rec
		contentLogger.Error().Err(err).Str("slug", slug).Msg("Error loading post")
		return rec
	}

	s.detail.Data = post
	s.detail.Err = nil
	s.detail.LastUpdated = time.Now().UTC()
	return nil
}
