package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skyroutes/flightdeck/internal/analytics"
	"github.com/skyroutes/flightdeck/internal/config"
	"github.com/skyroutes/flightdeck/internal/content"
	"github.com/skyroutes/flightdeck/internal/errclass"
	"github.com/skyroutes/flightdeck/internal/leads"
	"github.com/skyroutes/flightdeck/internal/media"
	"github.com/skyroutes/flightdeck/internal/model"
	"github.com/skyroutes/flightdeck/internal/render"
	"github.com/skyroutes/flightdeck/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		mainLogger.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError classifies the error and replies with its user-facing form.
func writeError(w http.ResponseWriter, err error) {
	rec := errclass.Classify(err)
	writeJSON(w, statusForKind(rec.Kind), map[string]any{"error": rec})
}

func statusForKind(kind errclass.Kind) int {
	switch kind {
	case errclass.KindValidation:
		return http.StatusBadRequest
	case errclass.KindPermission:
		return http.StatusForbidden
	case errclass.KindTimeout:
		return http.StatusGatewayTimeout
	case errclass.KindNetwork, errclass.KindServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// postEnvelope is the admin API response for post mutations: the
// authoritative record plus the listing slot after the operation.
type postEnvelope struct {
	Post *model.Post                        `json:"post,omitempty"`
	List content.State[[]model.PostPreview] `json:"list"`
}

// handlePosts serves GET (listing state) and POST (create) on /api/posts.
// Both are admin operations: the listing state carries internal error
// records, so reads need the token too.
func handlePosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		adminAuth.RequireAuth(handleListPosts)(w, r)
	case http.MethodPost:
		adminAuth.RequireAuth(handleCreatePost)(w, r)
	default:
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
	}
}

func handleListPosts(w http.ResponseWriter, r *http.Request) {
	if list := store.List(); !list.LastUpdated.IsZero() {
		writeJSON(w, http.StatusOK, list)
		return
	}
	if err := store.LoadList(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, store.List())
}

func handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var draft model.PostDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, errors.New("validation: invalid JSON body"))
		return
	}

	post, err := store.CreatePost(r.Context(), &draft)
	if err != nil {
		writeError(w, err)
		return
	}

	render.WarmCache([]byte(post.Body), util.ContentHashString(post.Body), render.DefaultHighlightTheme)
	writeJSON(w, http.StatusCreated, postEnvelope{Post: post, List: store.List()})
}

// handlePostByID serves GET, PATCH and DELETE on /api/posts/{id}.
func handlePostByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		adminAuth.RequireAuth(handleGetPost)(w, r)
	case http.MethodPatch, http.MethodPut:
		adminAuth.RequireAuth(handleUpdatePost)(w, r)
	case http.MethodDelete:
		adminAuth.RequireAuth(handleDeletePost)(w, r)
	default:
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
	}
}

// handleGetPost loads the detail slot for one post and returns its state.
// The path segment is resolved against the listing, so a post id and a
// slug both work.
func handleGetPost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if store.List().LastUpdated.IsZero() {
		if err := store.LoadList(r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}

	slug := id
	for _, preview := range store.List().Data {
		if string(preview.ID) == id {
			slug = preview.Slug
			break
		}
	}

	if err := store.LoadDetail(r.Context(), slug); err != nil {
		var sc errclass.StatusCoder
		if errors.As(err, &sc) && sc.HTTPStatus() == http.StatusNotFound {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": errclass.Classify(err)})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, store.Detail())
}

func handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id := model.PostID(r.PathValue("id"))

	var patch model.PostPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, errors.New("validation: invalid JSON body"))
		return
	}

	post, err := store.UpdatePost(r.Context(), id, &patch)
	if err != nil {
		writeError(w, err)
		return
	}

	render.WarmCache([]byte(post.Body), util.ContentHashString(post.Body), render.DefaultHighlightTheme)
	writeJSON(w, http.StatusOK, postEnvelope{Post: post, List: store.List()})
}

func handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := model.PostID(r.PathValue("id"))

	if err := store.DeletePost(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, postEnvelope{List: store.List()})
}

// handleLeads serves GET /api/leads for admins.
func handleLeads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	adminAuth.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		list, err := leadStore.List(0)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"leads": list})
	})(w, r)
}

// handleContact accepts public contact form submissions.
func handleContact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	var sub leads.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, errors.New("validation: invalid JSON body"))
		return
	}

	lead, err := leadStore.Save(sub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": lead.ID})
}

// pageViewRequest is the public tracking payload. A missing session id
// gets one assigned, which the client should persist.
type pageViewRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Path      string `json:"path"`
	Referrer  string `json:"referrer,omitempty"`
	Query     string `json:"query,omitempty"`
}

func handlePageView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	if !config.AppConfig.Analytics.Enabled {
		writeJSON(w, http.StatusAccepted, map[string]any{"recorded": false})
		return
	}

	var req pageViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("validation: invalid JSON body"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	pv := model.PageView{
		SessionID: req.SessionID,
		Path:      req.Path,
		Referrer:  req.Referrer,
	}
	if req.Query != "" {
		if values, err := parseQuery(req.Query); err == nil {
			pv.UTM = analytics.ParseUTM(values)
		}
	}

	if err := analyticsStore.Record(r.Context(), pv); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"recorded": true, "sessionId": req.SessionID})
}

// handleSummary serves GET /api/analytics/summary?days=N for admins.
func handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	adminAuth.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		days := 30
		if raw := r.URL.Query().Get("days"); raw != "" {
			if parsed, err := parseDays(raw); err == nil {
				days = parsed
			}
		}

		summary, err := analyticsStore.Summarize(time.Now().AddDate(0, 0, -days))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})(w, r)
}

// handleMedia accepts multipart cover image uploads from admins.
func handleMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	adminAuth.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if uploader == nil {
			writeError(w, errors.New("validation: media uploads are disabled"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, errors.New("validation: file field is required"))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, errors.New("validation: upload could not be read"))
			return
		}

		url, err := uploader.Upload(r.Context(), header.Filename, header.Header.Get(config.HCType), data)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"url": url})
	})(w, r)
}

func parseQuery(raw string) (url.Values, error) {
	return url.ParseQuery(strings.TrimPrefix(raw, "?"))
}

func parseDays(raw string) (int, error) {
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if days < 1 || days > 365 {
		return 0, errors.New("days out of range")
	}
	return days, nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok", "sseClients": clients.Count(), "cachedPages": pageCache.Len()}
	if database != nil && database.Get() != nil {
		if err := database.Get().Ping(); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, status)
}
