package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Post is the editor view of a post as the API returns it.
type Post struct {
	ID                uuid.UUID `json:"id"`
	Title             string    `json:"title"`
	Slug              string    `json:"slug"`
	ContentMarkdown   string    `json:"content_markdown"`
	Published         bool      `json:"published"`
	HasPendingChanges bool      `json:"has_pending_changes"`
	Workflow          string    `json:"workflow"`
}

func (p Post) Draft() Draft {
	return Draft{Title: p.Title, ContentMarkdown: p.ContentMarkdown}
}

type SaveResult struct {
	Success  bool   `json:"success"`
	Workflow string `json:"workflow"`
	Warning  string `json:"warning,omitempty"`
}

// PostAPI is the part of the post API a session needs.
type PostAPI interface {
	Load(ctx context.Context, postID uuid.UUID) (*Post, error)
	Save(ctx context.Context, postID uuid.UUID, draft Draft) (*SaveResult, error)
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("post api error (status %d): %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("post api error (status %d): %s", e.StatusCode, e.Message)
}

// Client talks to the post API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		logger:     log.With().Str("component", "studioClient").Logger(),
	}
}

func (c *Client) Load(ctx context.Context, postID uuid.UUID) (*Post, error) {
	var post Post
	if err := c.do(ctx, http.MethodGet, "/posts/"+postID.String(), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) Save(ctx context.Context, postID uuid.UUID, draft Draft) (*SaveResult, error) {
	var result SaveResult
	if err := c.do(ctx, http.MethodPut, "/posts/"+postID.String(), draft, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonPayload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(bodyBytes))
		}
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg(apiErr.Message)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
