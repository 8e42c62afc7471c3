package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBodyErrors(t *testing.T) {
	validate := newValidator()

	cases := []struct {
		name  string
		body  string
		check func(error) bool
		field string
	}{
		{"empty body", "", errs.IsMalformedPayloadError, "payload"},
		{"broken json", `{"title":`, errs.IsInvalidJSONError, "json"},
		{"missing field", `{"title":"T"}`, errs.IsMissingRequiredFieldError, "content_markdown"},
		{"title too long", `{"title":"` + strings.Repeat("x", 501) + `","content_markdown":""}`, errs.IsInvalidFieldError, "title"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/posts/x", strings.NewReader(c.body))
			var dst saveDraftRequest

			err := decodeBody(httptest.NewRecorder(), req, validate, "draft", &dst)
			require.Error(t, err)
			assert.True(t, c.check(err), "unexpected error %v", err)

			apiErr, ok := err.(*errs.ApiErr)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			assert.Equal(t, c.field, apiErr.Field)
		})
	}
}

func TestDecodeBodyAcceptsValidDraft(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/posts/x", strings.NewReader(`{"title":"T","content_markdown":""}`))
	var dst saveDraftRequest

	require.NoError(t, decodeBody(httptest.NewRecorder(), req, newValidator(), "draft", &dst))
	require.NotNil(t, dst.ContentMarkdown)
	assert.Equal(t, "", *dst.ContentMarkdown)
}

func TestAuthorID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	_, err := authorID(req)
	assert.True(t, errs.IsUnauthorized(err))

	id := uuid.New()
	got, err := authorID(req.WithContext(ctxWithUserID(req.Context(), id)))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
