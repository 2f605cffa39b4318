package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skyroutes/flightdeck/internal/model"
)

func doJSON(mux http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandlePostsGet(t *testing.T) {
	fake := &fakeCMS{posts: []model.Post{testPost("p1", "first-solo", "First Solo")}}

	t.Run("requires a token", func(t *testing.T) {
		mux := setupApp(t, fake)
		if rec := doJSON(mux, http.MethodGet, "/api/posts", "", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("returns the listing state", func(t *testing.T) {
		mux := setupApp(t, fake)

		rec := doJSON(mux, http.MethodGet, "/api/posts", testAdminToken, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var state struct {
			Data       []model.PostPreview `json:"data"`
			Loading    bool                `json:"isLoading"`
			Optimistic bool                `json:"isOptimistic"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
			t.Fatal(err)
		}
		if len(state.Data) != 1 || state.Data[0].Slug != "first-solo" {
			t.Errorf("Unexpected listing: %+v", state)
		}
		if state.Loading || state.Optimistic {
			t.Errorf("Expected settled state, got %+v", state)
		}
	})
}

func TestHandleGetPost(t *testing.T) {
	fake := &fakeCMS{posts: []model.Post{testPost("p1", "first-solo", "First Solo")}}

	t.Run("requires a token", func(t *testing.T) {
		mux := setupApp(t, fake)
		if rec := doJSON(mux, http.MethodGet, "/api/posts/p1", "", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("returns the detail state by id", func(t *testing.T) {
		mux := setupApp(t, fake)

		rec := doJSON(mux, http.MethodGet, "/api/posts/p1", testAdminToken, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var state struct {
			Data       *model.Post `json:"data"`
			Loading    bool        `json:"isLoading"`
			Optimistic bool        `json:"isOptimistic"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
			t.Fatal(err)
		}
		if state.Data == nil || state.Data.Slug != "first-solo" || state.Data.Body == "" {
			t.Errorf("Unexpected detail: %+v", state.Data)
		}
		if state.Loading || state.Optimistic {
			t.Errorf("Expected settled state, got %+v", state)
		}
	})

	t.Run("accepts a slug as the path segment", func(t *testing.T) {
		mux := setupApp(t, fake)
		if rec := doJSON(mux, http.MethodGet, "/api/posts/first-solo", testAdminToken, ""); rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unknown post is 404", func(t *testing.T) {
		mux := setupApp(t, fake)
		if rec := doJSON(mux, http.MethodGet, "/api/posts/missing", testAdminToken, ""); rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHandleCreatePost(t *testing.T) {
	draft := `{"title":"New Post","slug":"new-post","body":"Hello."}`

	t.Run("requires a token", func(t *testing.T) {
		mux := setupApp(t, &fakeCMS{})
		if rec := doJSON(mux, http.MethodPost, "/api/posts", "", draft); rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("creates and invalidates the listing page", func(t *testing.T) {
		fake := &fakeCMS{posts: []model.Post{testPost("p1", "first-solo", "First Solo")}}
		mux := setupApp(t, fake)

		// Warm the listing page so the commit has something to drop.
		doJSON(mux, http.MethodGet, "/blog", "", "")
		if _, _, ok := pageCache.Get("/blog"); !ok {
			t.Fatal("Expected listing page cached")
		}

		rec := doJSON(mux, http.MethodPost, "/api/posts", testAdminToken, draft)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp postEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Post == nil || resp.Post.ID != "srv-new-post" {
			t.Errorf("Expected server-issued post, got %+v", resp.Post)
		}
		if resp.List.Optimistic {
			t.Error("Expected listing settled after commit")
		}
		for _, p := range resp.List.Data {
			if p.ID.IsTemp() {
				t.Errorf("Expected no temp ids after commit, got %s", p.ID)
			}
		}

		waitForCacheDrop(t, "/blog")
	})

	t.Run("create failure rolls back", func(t *testing.T) {
		fake := &fakeCMS{
			posts:     []model.Post{testPost("p1", "first-solo", "First Solo")},
			createErr: errors.New("network connection refused"),
		}
		mux := setupApp(t, fake)

		doJSON(mux, http.MethodGet, "/api/posts", testAdminToken, "")

		rec := doJSON(mux, http.MethodPost, "/api/posts", testAdminToken, draft)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("Expected 502, got %d: %s", rec.Code, rec.Body.String())
		}

		list := store.List()
		if len(list.Data) != 1 || list.Data[0].ID != "p1" {
			t.Errorf("Expected listing restored, got %+v", list.Data)
		}
		if list.Err == nil {
			t.Error("Expected listing error recorded")
		}
	})

	t.Run("invalid JSON is 400", func(t *testing.T) {
		mux := setupApp(t, &fakeCMS{})
		if rec := doJSON(mux, http.MethodPost, "/api/posts", testAdminToken, "{"); rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestHandleUpdatePost(t *testing.T) {
	patch := `{"title":"Renamed"}`

	t.Run("requires a token", func(t *testing.T) {
		mux := setupApp(t, &fakeCMS{})
		if rec := doJSON(mux, http.MethodPatch, "/api/posts/p1", "", patch); rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("applies the patch", func(t *testing.T) {
		fake := &fakeCMS{posts: []model.Post{testPost("p1", "first-solo", "First Solo")}}
		mux := setupApp(t, fake)
		doJSON(mux, http.MethodGet, "/api/posts", testAdminToken, "")

		rec := doJSON(mux, http.MethodPatch, "/api/posts/p1", testAdminToken, patch)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp postEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Post == nil || resp.Post.Title != "Renamed" {
			t.Errorf("Expected renamed post, got %+v", resp.Post)
		}
	})

	t.Run("failure rolls the listing back", func(t *testing.T) {
		fake := &fakeCMS{
			posts:     []model.Post{testPost("p1", "first-solo", "First Solo")},
			updateErr: errors.New("network connection refused"),
		}
		mux := setupApp(t, fake)
		doJSON(mux, http.MethodGet, "/api/posts", testAdminToken, "")

		rec := doJSON(mux, http.MethodPatch, "/api/posts/p1", testAdminToken, patch)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("Expected 502, got %d", rec.Code)
		}

		list := store.List()
		if list.Data[0].Title != "First Solo" {
			t.Errorf("Expected original title restored, got %q", list.Data[0].Title)
		}
	})
}

func TestHandleDeletePost(t *testing.T) {
	fake := &fakeCMS{posts: []model.Post{testPost("p1", "first-solo", "First Solo")}}
	mux := setupApp(t, fake)
	doJSON(mux, http.MethodGet, "/api/posts", testAdminToken, "")

	rec := doJSON(mux, http.MethodDelete, "/api/posts/p1", testAdminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp postEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.List.Data) != 0 {
		t.Errorf("Expected empty listing after delete, got %+v", resp.List.Data)
	}
}

func TestHandleContact(t *testing.T) {
	mux := setupApp(t, &fakeCMS{})

	t.Run("accepts a valid submission", func(t *testing.T) {
		body := `{"name":"Jane","email":"jane@example.com","subject":"CPL","message":"Dates?"}`
		rec := doJSON(mux, http.MethodPost, "/api/contact", "", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp["id"] == "" {
			t.Error("Expected lead id in response")
		}
	})

	t.Run("rejects an invalid submission", func(t *testing.T) {
		body := `{"name":"Jane","email":"nope","subject":"CPL","message":"Dates?"}`
		if rec := doJSON(mux, http.MethodPost, "/api/contact", "", body); rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("GET not allowed", func(t *testing.T) {
		if rec := doJSON(mux, http.MethodGet, "/api/contact", "", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", rec.Code)
		}
	})
}

func TestHandleLeads(t *testing.T) {
	mux := setupApp(t, &fakeCMS{})

	body := `{"name":"Jane","email":"jane@example.com","subject":"CPL","message":"Dates?"}`
	if rec := doJSON(mux, http.MethodPost, "/api/contact", "", body); rec.Code != http.StatusCreated {
		t.Fatalf("Failed to seed lead: %d", rec.Code)
	}

	t.Run("requires a token", func(t *testing.T) {
		if rec := doJSON(mux, http.MethodGet, "/api/leads", "", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("lists leads for admins", func(t *testing.T) {
		rec := doJSON(mux, http.MethodGet, "/api/leads", testAdminToken, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Leads []model.Lead `json:"leads"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Leads) != 1 || resp.Leads[0].Name != "Jane" {
			t.Errorf("Unexpected leads: %+v", resp.Leads)
		}
	})
}

func TestHandlePageView(t *testing.T) {
	mux := setupApp(t, &fakeCMS{})

	t.Run("records and assigns a session id", func(t *testing.T) {
		body := `{"path":"/blog/first-solo","query":"utm_source=newsletter"}`
		rec := doJSON(mux, http.MethodPost, "/api/analytics/pageview", "", body)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Recorded  bool   `json:"recorded"`
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if !resp.Recorded || resp.SessionID == "" {
			t.Errorf("Unexpected response: %+v", resp)
		}
	})

	t.Run("rejects relative paths", func(t *testing.T) {
		body := `{"path":"blog"}`
		if rec := doJSON(mux, http.MethodPost, "/api/analytics/pageview", "", body); rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestHandleSummary(t *testing.T) {
	mux := setupApp(t, &fakeCMS{})

	body := `{"sessionId":"s1","path":"/blog"}`
	if rec := doJSON(mux, http.MethodPost, "/api/analytics/pageview", "", body); rec.Code != http.StatusAccepted {
		t.Fatalf("Failed to seed page view: %d", rec.Code)
	}

	t.Run("requires a token", func(t *testing.T) {
		if rec := doJSON(mux, http.MethodGet, "/api/analytics/summary", "", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("summarizes for admins", func(t *testing.T) {
		rec := doJSON(mux, http.MethodGet, "/api/analytics/summary?days=7", testAdminToken, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			TotalViews int `json:"totalViews"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.TotalViews != 1 {
			t.Errorf("Expected 1 view, got %d", resp.TotalViews)
		}
	})
}

func TestHandleMediaDisabled(t *testing.T) {
	mux := setupApp(t, &fakeCMS{})

	rec := doJSON(mux, http.MethodPost, "/api/media", testAdminToken, "{}")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 when media is disabled, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	mux := setupApp(t, &fakeCMS{})

	rec := doJSON(mux, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("Expected ok status, got %v", resp["status"])
	}
}
