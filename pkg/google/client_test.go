package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.websiteUri")

		var req textSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "roofing contractor near Austin, TX", req.TextQuery)

		json.NewEncoder(w).Encode(TextSearchResponse{Places: []Place{
			{DisplayName: DisplayName{Text: "ATX Roofing"}, WebsiteURI: "https://atxroofing.example.com", Rating: 4.8},
		}})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := c.TextSearch(context.Background(), "roofing contractor near Austin, TX")
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "ATX Roofing", resp.Places[0].DisplayName.Text)
	assert.Equal(t, "https://atxroofing.example.com", resp.Places[0].WebsiteURI)
}

func TestTextSearch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.TextSearch(context.Background(), "query")
	assert.Error(t, err)
}
