package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/database/dbtest"
	"github.com/rpupo63/post-studio-backend/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type apiFixture struct {
	dbtest.Fixture
	router http.Handler
	token  string
}

func newAPIFixture(t *testing.T, layout dbtest.Layout) apiFixture {
	t.Helper()
	f := dbtest.New(t, layout)
	return apiFixture{
		Fixture: f,
		router:  newRouter(f.Store, withJWTSecret(testSecret), withAcceptedOrigins([]string{"https://studio.example"})),
		token:   signToken(t, f.AuthorID.String(), time.Hour),
	}
}

func signToken(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (f apiFixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type postBody struct {
	ID                 uuid.UUID  `json:"id"`
	Title              string     `json:"title"`
	Slug               string     `json:"slug"`
	ContentMarkdown    string     `json:"content_markdown"`
	LiveContent        *string    `json:"live_content_markdown"`
	Published          bool       `json:"published"`
	PublishedVersionID *uuid.UUID `json:"published_version_id"`
	Workflow           string     `json:"workflow"`
	Versions           []struct {
		ID            uuid.UUID `json:"id"`
		VersionNumber int       `json:"version_number"`
	} `json:"versions"`
}

func (f apiFixture) createPost(t *testing.T, title, content string) postBody {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/posts", map[string]string{"title": title, "content_markdown": content}, f.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[postBody](t, rec)
}

func TestCreatePostUsesServiceOptions(t *testing.T) {
	f := newAPIFixture(t, dbtest.Versioned)
	f.router = newRouter(f.Store,
		withJWTSecret(testSecret),
		withServiceOptions(services.WithSlugSuffix(func() string { return "abc123" })),
	)

	post := f.createPost(t, "Hello, World!", "body")
	assert.Equal(t, "hello-world-abc123", post.Slug)
}

func TestAuthentication(t *testing.T) {
	f := newAPIFixture(t, dbtest.Versioned)

	rec := f.do(t, http.MethodGet, "/posts", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/posts", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/posts", nil, signToken(t, f.AuthorID.String(), -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Access token has expired", decode[ErrorResponse](t, rec).Details)

	rec = f.do(t, http.MethodGet, "/posts", nil, signToken(t, "not-a-uuid", time.Hour))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.RegisteredClaims{Subject: f.AuthorID.String()}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/posts", nil, wrongAlg)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/posts", nil, f.token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostLifecycle(t *testing.T) {
	f := newAPIFixture(t, dbtest.Versioned)
	post := f.createPost(t, "T1", "C1")
	assert.True(t, strings.HasPrefix(post.Slug, "t1-"))
	path := "/posts/" + post.ID.String()

	rec := f.do(t, http.MethodPut, path, map[string]string{"title": "T1", "content_markdown": "C2"}, f.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[struct {
		Success bool   `json:"success"`
		Warning string `json:"warning"`
		Version struct {
			VersionNumber int `json:"version_number"`
		} `json:"version"`
		Workflow string `json:"workflow"`
	}](t, rec)
	assert.True(t, saved.Success)
	assert.Empty(t, saved.Warning)
	assert.Equal(t, 1, saved.Version.VersionNumber)
	assert.Equal(t, "versioned", saved.Workflow)

	rec = f.do(t, http.MethodPatch, path, map[string]string{"action": "publish_version"}, f.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "published", decode[map[string]any](t, rec)["state"])

	rec = f.do(t, http.MethodDelete, path, nil, f.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, path, nil, f.token)
	require.Equal(t, http.StatusOK, rec.Code)
	loaded := decode[postBody](t, rec)
	assert.True(t, loaded.Published)
	require.NotNil(t, loaded.LiveContent)
	assert.Equal(t, "C2", *loaded.LiveContent)
	require.Len(t, loaded.Versions, 1)
	require.NotNil(t, loaded.PublishedVersionID)
	assert.Equal(t, loaded.Versions[0].ID, *loaded.PublishedVersionID)

	rec = f.do(t, http.MethodPatch, path, map[string]string{"action": "unpublish"}, f.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodDelete, path, nil, f.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, path, nil, f.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostsAreScopedToTheirAuthor(t *testing.T) {
	f := newAPIFixture(t, dbtest.Versioned)
	post := f.createPost(t, "Mine", "body")

	other := signToken(t, uuid.NewString(), time.Hour)
	rec := f.do(t, http.MethodGet, "/posts/"+post.ID.String(), nil, other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, "/posts/"+post.ID.String(), map[string]string{"title": "x", "content_markdown": "y"}, other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/posts", nil, other)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, rec)["total"])
}

func TestCreatePostWithoutWorkspace(t *testing.T) {
	f := newAPIFixture(t, dbtest.Versioned)

	rec := f.do(t, http.MethodPost, "/posts", map[string]string{"title": "x"}, signToken(t, uuid.NewString(), time.Hour))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestValidation(t *testing.T) {
	f := newAPIFixture(t, dbtest.Versioned)
	post := f.createPost(t, "Hello", "")
	path := "/posts/" + post.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		field  string
	}{
		{"invalid id", http.MethodGet, "/posts/not-a-uuid", nil, ""},
		{"broken json", http.MethodPut, path, `{"title":`, "json"},
		{"empty body", http.MethodPut, path, "", "payload"},
		{"missing content", http.MethodPut, path, map[string]string{"title": "x"}, "content_markdown"},
		{"missing action", http.MethodPatch, path, map[string]string{}, "action"},
		{"unsupported action", http.MethodPatch, path, map[string]string{"action": "archive"}, "action"},
		{"bulk without ids", http.MethodPost, "/posts/bulk", map[string]any{"action": "delete", "ids": []string{}}, "ids"},
		{"bulk bad action", http.MethodPost, "/posts/bulk", map[string]any{"action": "archive", "ids": []string{post.ID.String()}}, "action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body, f.token)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			if tt.field != "" {
				assert.Equal(t, tt.field, decode[ErrorResponse](t, rec).Field)
			}
		})
	}
}

func TestFeatureUnavailableOnLegacySchema(t *testing.T) {
	f := newAPIFixture(t, dbtest.Legacy)
	post := f.createPost(t, "Old", "body")

	rec := f.do(t, http.MethodPatch, "/posts/"+post.ID.String(), map[string]string{"action": "publish_version"}, f.token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Run DB migration first.", body.Details)
	assert.Equal(t, "migration", body.Field)

	rec = f.do(t, http.MethodPut, "/posts/"+post.ID.String(), map[string]string{"title": "Old", "content_markdown": "new"}, f.token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "legacy", decode[map[string]any](t, rec)["workflow"])
}

func TestBulkDeleteWithPublishedPost(t *testing.T) {
	f := newAPIFixture(t, dbtest.Versioned)
	published := f.createPost(t, "A", "a")
	draft := f.createPost(t, "B", "b")

	rec := f.do(t, http.MethodPatch, "/posts/"+published.ID.String(), map[string]string{"action": "publish"}, f.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/posts/bulk", map[string]any{
		"action": "delete",
		"ids":    []uuid.UUID{published.ID, draft.ID},
	}, f.token)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	body := decode[bulkBlockedResponse](t, rec)
	assert.Equal(t, []uuid.UUID{published.ID}, body.BlockedIDs)
	assert.Equal(t, []uuid.UUID{draft.ID}, body.AffectedIDs)

	rec = f.do(t, http.MethodGet, "/posts/"+published.ID.String(), nil, f.token)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/posts/"+draft.ID.String(), nil, f.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkUnpublish(t *testing.T) {
	f := newAPIFixture(t, dbtest.Versioned)
	post := f.createPost(t, "A", "a")
	rec := f.do(t, http.MethodPatch, "/posts/"+post.ID.String(), map[string]string{"action": "publish"}, f.token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/posts/bulk", map[string]any{"action": "unpublish", "ids": []uuid.UUID{post.ID}}, f.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{post.ID.String()}, decode[map[string]any](t, rec)["affected_ids"])
}

func TestPublicCatalog(t *testing.T) {
	f := newAPIFixture(t, dbtest.Versioned)
	post := f.createPost(t, "Public Title", "Readable **body**")
	f.createPost(t, "Hidden", "still a draft")

	rec := f.do(t, http.MethodPatch, "/posts/"+post.ID.String(), map[string]string{"action": "publish"}, f.token)
	require.Equal(t, http.StatusOK, rec.Code)

	// draft edits after publishing stay invisible to readers
	rec = f.do(t, http.MethodPut, "/posts/"+post.ID.String(), map[string]string{"title": "Edited", "content_markdown": "unpublished edit"}, f.token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/workspaces/studio/posts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[struct {
		Posts []struct {
			Title   string `json:"title"`
			Slug    string `json:"slug"`
			Excerpt string `json:"excerpt"`
		} `json:"posts"`
		NextCursor *string `json:"nextCursor"`
	}](t, rec)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "Public Title", page.Posts[0].Title)
	assert.Equal(t, "Readable body", page.Posts[0].Excerpt)
	assert.Nil(t, page.NextCursor)

	rec = f.do(t, http.MethodGet, "/workspaces/studio/posts/"+post.Slug, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	public := decode[map[string]any](t, rec)
	assert.Equal(t, "Public Title", public["title"])
	assert.Equal(t, "Readable **body**", public["content_markdown"])

	rec = f.do(t, http.MethodGet, "/workspaces/nowhere/posts", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	f := newAPIFixture(t, dbtest.Pending)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
	assert.Equal(t, "pending", decode[healthResponse](t, rec).Workflow)

	rec = f.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "poststudio_http_requests_total")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	f := newAPIFixture(t, dbtest.Versioned)

	req := httptest.NewRequest(http.MethodOptions, "/posts", nil)
	req.Header.Set("Origin", "https://studio.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, "https://studio.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/posts", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
