package dkan

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dkansync/internal/core/domain"
)

func TestAPIError_Unwrap(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnauthorized, domain.ErrAuthInvalid},
		{http.StatusForbidden, domain.ErrAuthInvalid},
		{http.StatusTooManyRequests, domain.ErrTransient},
		{http.StatusBadGateway, domain.ErrTransient},
	}

	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status, Message: "x", URL: "u"}
		assert.ErrorIs(t, err, tt.want, tt.status)
	}

	plain := &APIError{StatusCode: http.StatusNotAcceptable}
	assert.Nil(t, plain.Unwrap())
	assert.True(t, IsUnauthorized(&APIError{StatusCode: http.StatusForbidden}))
	assert.False(t, IsUnauthorized(plain))
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "list", body: `["Node 4 not found"]`, want: "Node 4 not found"},
		{name: "form errors", body: `{"form_errors":{"title":"required"}}`, want: "map[title:required]"},
		{name: "error object", body: `{"success":false,"error":"boom"}`, want: "boom"},
		{name: "text", body: " Service down ", want: "Service down"},
		{name: "empty", body: "", want: "502 Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorMessage([]byte(tt.body), "502 Bad Gateway"))
		})
	}
}

func TestDecodePackages(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ids  []string
	}{
		{name: "nested list", raw: `[[{"id":"a"},{"id":"b"}]]`, ids: []string{"a", "b"}},
		{name: "flat list", raw: `[{"id":"a"}]`, ids: []string{"a"}},
		{name: "single", raw: `{"id":"a"}`, ids: []string{"a"}},
		{name: "null", raw: `null`},
		{name: "empty list", raw: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packages, err := decodePackages([]byte(tt.raw))
			require.NoError(t, err)
			var ids []string
			for _, p := range packages {
				ids = append(ids, p["id"].(string))
			}
			assert.Equal(t, tt.ids, ids)
		})
	}

	_, err := decodePackages([]byte(`[1]`))
	assert.Error(t, err)
}

func TestParseTerms(t *testing.T) {
	page := `<td><a href="/taxonomy/term/120" id="edit-tid1200-view">Bildung</a></td>
<td><a href="/taxonomy/term/3" id="edit-tid30-view">Umwelt &amp; Klima</a></td>`

	assert.Equal(t, map[string]string{"120": "Bildung", "3": "Umwelt & Klima"}, parseTerms(page))
	assert.Empty(t, parseTerms("<html></html>"))
}

func TestRateLimiter_Backoff(t *testing.T) {
	r := NewRateLimiter(0)

	r.Backoff("2", time.Millisecond)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), r.retryAt, 200*time.Millisecond)

	r.Backoff("bogus", time.Millisecond)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), r.retryAt, 200*time.Millisecond)
}
