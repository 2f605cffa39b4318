// Package revalidate turns committed content mutations into page-cache
// invalidations and live-reload broadcasts.
//
// Invalidation is fire-and-forget: nothing here can fail a mutation that
// has already committed. Cache staleness is preferred over data
// inconsistency, so errors are logged and dropped.
package revalidate

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/skyroutes/flightdeck/internal/auth"
	"github.com/skyroutes/flightdeck/internal/config"
	"github.com/skyroutes/flightdeck/internal/content"
	"github.com/skyroutes/flightdeck/internal/sse"
)

var revalidateLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	revalidateLogger = l
}

// Tags used by the blog pages.
const (
	TagPosts      = "posts"
	TagPostPrefix = "post:"
)

// Invalidator is the cache surface the notifier drives.
// *cache.PageCache satisfies it.
type Invalidator interface {
	InvalidateTag(tag string) int
	InvalidatePath(path string)
	Clear()
}

// Notifier consumes commit events and exposes the manual invalidation
// endpoints.
type Notifier struct {
	cache    Invalidator
	clients  *sse.Clients
	provider auth.Provider
}

func NewNotifier(cache Invalidator, clients *sse.Clients, provider auth.Provider) *Notifier {
	return &Notifier{
		cache:    cache,
		clients:  clients,
		provider: provider,
	}
}

// PostTags returns the cache tags affected by a mutation of the post with
// the given slug.
func PostTags(slug string) []string {
	tags := []string{TagPosts}
	if slug != "" {
		tags = append(tags, TagPostPrefix+slug)
	}
	return tags
}

// HandleCommit invalidates every tag and path a committed mutation can
// have touched, then tells subscribed browsers to reload.
func (n *Notifier) HandleCommit(ev content.CommitEvent) {
	dropped := 0
	for _, tag := range PostTags(ev.Slug) {
		dropped += n.cache.InvalidateTag(tag)
	}
	// Tag indexing covers pages stored through Put; the listing path is
	// invalidated explicitly in case it was cached before tagging.
	n.cache.InvalidatePath("/blog")

	revalidateLogger.Info().
		Str("op", string(ev.Op)).
		Str("post_id", string(ev.ID)).
		Str("slug", ev.Slug).
		Int("pages_dropped", dropped).
		Msg("Cache invalidated after commit")

	if n.clients != nil {
		n.clients.Broadcast("/blog", "reload")
		if ev.Slug != "" {
			n.clients.Broadcast("/blog/"+ev.Slug, "reload")
		}
	}
}

type revalidateRequest struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

type revalidateResponse struct {
	Revalidated bool   `json:"revalidated"`
	Type        string `json:"type"`
	Value       string `json:"value,omitempty"`
	Pages       int    `json:"pages,omitempty"`
}

// ServeRevalidate is the token-guarded manual invalidation entry point:
// POST {"type": "tag"|"path"|"all", "value": ...}.
func (n *Notifier) ServeRevalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	if err := n.provider.VerifyRequest(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req revalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	resp := revalidateResponse{Revalidated: true, Type: req.Type, Value: req.Value}
	switch req.Type {
	case "tag":
		if req.Value == "" {
			http.Error(w, "value required for type=tag", http.StatusBadRequest)
			return
		}
		resp.Pages = n.cache.InvalidateTag(req.Value)
	case "path":
		if !strings.HasPrefix(req.Value, "/") {
			http.Error(w, "value must be an absolute path", http.StatusBadRequest)
			return
		}
		n.cache.InvalidatePath(req.Value)
		resp.Pages = 1
	case "all":
		n.cache.Clear()
	default:
		http.Error(w, "type must be tag, path or all", http.StatusBadRequest)
		return
	}

	revalidateLogger.Info().
		Str("type", req.Type).
		Str("value", req.Value).
		Msg("Manual revalidation")

	writeJSON(w, resp)
}

type revalidatePathRequest struct {
	Path string `json:"path"`
}

// ServeRevalidatePath is the tokenless path-scoped entry point for
// same-origin client calls. It only ever drops a single path.
func (n *Notifier) ServeRevalidatePath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	var req revalidatePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(req.Path, "/") || strings.Contains(req.Path, "//") {
		http.Error(w, "path must be an absolute local path", http.StatusBadRequest)
		return
	}

	n.cache.InvalidatePath(req.Path)
	writeJSON(w, revalidateResponse{Revalidated: true, Type: "path", Value: req.Path, Pages: 1})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		revalidateLogger.Error().Err(err).Msg("Error encoding response")
	}
}
