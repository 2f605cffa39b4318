// Package cms is a thin HTTP client for the headless CMS's document API.
//
// Mutations go through the dataset mutate endpoint, reads through the query
// endpoint. The client performs no retries; retry policy belongs to callers.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/skyroutes/flightdeck/internal/model"
)

var cmsLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	cmsLogger = l
}

// APIError is a failure reported by the CMS, carrying the HTTP status and
// the machine code from the response body when present.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("cms: %s (%s)", e.Message, e.Code)
	}
	return "cms: " + e.Message
}

func (e *APIError) HTTPStatus() int   { return e.StatusCode }
func (e *APIError) ErrorCode() string { return e.Code }

type Client struct {
	httpClient *http.Client

	baseURL    string
	dataset    string
	apiVersion string
	token      string
}

func NewClient(baseURL, dataset, apiVersion, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},

		baseURL:    baseURL,
		dataset:    dataset,
		apiVersion: apiVersion,
		token:      token,
	}
}

// SetHTTPClient swaps the underlying HTTP client. Used by tests to attach
// an intercepted transport.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

func (c *Client) queryURL(params url.Values) string {
	return fmt.Sprintf("%s/%s/data/query/%s?%s", c.baseURL, c.apiVersion, c.dataset, params.Encode())
}

func (c *Client) mutateURL() string {
	return fmt.Sprintf("%s/%s/data/mutate/%s?returnDocuments=true", c.baseURL, c.apiVersion, c.dataset)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope struct {
		Error struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"error"`
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Description != "" {
		apiErr.Code = envelope.Error.Type
		apiErr.Message = envelope.Error.Description
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	cmsLogger.Debug().
		Int("status", apiErr.StatusCode).
		Str("code", apiErr.Code).
		Str("message", apiErr.Message).
		Msg("CMS call failed")

	return apiErr
}

type queryResult[T any] struct {
	Result []T `json:"result"`
}

// ListPosts returns the preview documents for every published post,
// newest first as ordered by the CMS.
func (c *Client) ListPosts(ctx context.Context) ([]model.PostPreview, error) {
	params := url.Values{}
	params.Set("type", "post")

	var res queryResult[model.PostPreview]
	if err := c.do(ctx, http.MethodGet, c.queryURL(params), nil, &res); err != nil {
		return nil, err
	}
	return res.Result, nil
}

// GetPostBySlug fetches the full record for one post.
func (c *Client) GetPostBySlug(ctx context.Context, slug string) (*model.Post, error) {
	if slug == "" {
		return nil, errors.New("post slug is required")
	}

	params := url.Values{}
	params.Set("type", "post")
	params.Set("slug", slug)

	var res queryResult[model.Post]
	if err := c.do(ctx, http.MethodGet, c.queryURL(params), nil, &res); err != nil {
		return nil, err
	}
	if len(res.Result) == 0 {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "post not found: " + slug}
	}
	return &res.Result[0], nil
}

type mutation struct {
	Create *model.PostDraft `json:"create,omitempty"`
	Patch  *patchMutation   `json:"patch,omitempty"`
	Delete *deleteMutation  `json:"delete,omitempty"`
}

type patchMutation struct {
	ID  model.PostID     `json:"id"`
	Set *model.PostPatch `json:"set"`
}

type deleteMutation struct {
	ID model.PostID `json:"id"`
}

type mutateRequest struct {
	Mutations []mutation `json:"mutations"`
}

type mutateResponse struct {
	Results []struct {
		ID       model.PostID `json:"id"`
		Document *model.Post  `json:"document,omitempty"`
	} `json:"results"`
}

func (c *Client) mutate(ctx context.Context, m mutation) (*mutateResponse, error) {
	var res mutateResponse
	if err := c.do(ctx, http.MethodPost, c.mutateURL(), mutateRequest{Mutations: []mutation{m}}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreatePost creates a post document and returns the server-authoritative
// record, including the issued identifier and resolved references.
func (c *Client) CreatePost(ctx context.Context, draft *model.PostDraft) (*model.Post, error) {
	if draft == nil || draft.Title == "" {
		return nil, errors.New("validation: post title is required")
	}

	res, err := c.mutate(ctx, mutation{Create: draft})
	if err != nil {
		return nil, err
	}
	if len(res.Results) == 0 || res.Results[0].Document == nil {
		return nil, &APIError{StatusCode: http.StatusInternalServerError, Message: "create returned no document"}
	}
	return res.Results[0].Document, nil
}

// UpdatePost patches a post by id and returns the patched record.
func (c *Client) UpdatePost(ctx context.Context, id model.PostID, patch *model.PostPatch) (*model.Post, error) {
	if id == "" {
		return nil, errors.New("validation: post id is required")
	}
	if patch == nil {
		return nil, errors.New("validation: patch is required")
	}

	res, err := c.mutate(ctx, mutation{Patch: &patchMutation{ID: id, Set: patch}})
	if err != nil {
		return nil, err
	}
	if len(res.Results) == 0 || res.Results[0].Document == nil {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "post not found: " + string(id)}
	}
	return res.Results[0].Document, nil
}

// DeletePost deletes a post by id. Deleting an id the CMS does not know
// is reported as a not-found APIError.
func (c *Client) DeletePost(ctx context.Context, id model.PostID) error {
	if id == "" {
		return errors.New("validation: post id is required")
	}

	res, err := c.mutate(ctx, mutation{Delete: &deleteMutation{ID: id}})
	if err != nil {
		return err
	}
	if len(res.Results) == 0 {
		return &APIError{StatusCode: http.StatusNotFound, Message: "post not found: " + string(id)}
	}
	return nil
}
