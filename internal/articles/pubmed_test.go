package articles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/bolota/internal/reliability"
)

func newPubMedServer(t *testing.T, ids []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "amoxicilina", r.URL.Query().Get("term"))
			assert.Equal(t, "3", r.URL.Query().Get("retmax"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"esearchresult": map[string]any{"idlist": ids},
			})
		case "/esummary.fcgi":
			assert.Equal(t, "111,222", r.URL.Query().Get("id"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"uids": ids,
					"111": map[string]any{
						"title":   "Amoxicillin in dogs",
						"source":  "Vet J",
						"pubdate": "2023 Jan",
						"authors": []map[string]string{{"name": "Silva A"}, {"name": "Souza B"}},
					},
				},
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
}

func TestPubMedFindArticles(t *testing.T) {
	server := newPubMedServer(t, []string{"111", "222"})
	defer server.Close()

	c := NewPubMedClient(PubMedConfig{BaseURL: server.URL})
	got, err := c.FindArticles(context.Background(), "amoxicilina")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Amoxicillin in dogs", got[0].Title)
	assert.Equal(t, "Vet J", got[0].Journal)
	assert.Equal(t, []string{"Silva A", "Souza B"}, got[0].Authors)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/111/", got[0].Link)

	// Records missing from the summary keep their id and link only.
	assert.Equal(t, "222", got[1].ID)
	assert.Empty(t, got[1].Title)
}

func TestPubMedNoHits(t *testing.T) {
	server := newPubMedServer(t, []string{})
	defer server.Close()

	c := NewPubMedClient(PubMedConfig{BaseURL: server.URL})
	got, err := c.FindArticles(context.Background(), "amoxicilina")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPubMedEmptyTerm(t *testing.T) {
	c := NewPubMedClient(PubMedConfig{BaseURL: "http://example.test"})
	_, err := c.FindArticles(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyTerm)
}

func TestPubMedRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"esearchresult": map[string]any{"idlist": []string{}}})
	}))
	defer server.Close()

	c := NewPubMedClient(PubMedConfig{
		BaseURL: server.URL,
		Retry:   reliability.Policy{Attempts: 2, Base: time.Millisecond, Cap: time.Millisecond},
	})
	_, err := c.FindArticles(context.Background(), "bravecto")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPubMedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer server.Close()

	c := NewPubMedClient(PubMedConfig{BaseURL: server.URL})
	_, err := c.FindArticles(context.Background(), "bravecto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestPubMedDefaults(t *testing.T) {
	c := NewPubMedClient(PubMedConfig{})
	assert.Equal(t, DefaultPubMedURL, c.baseURL)
	assert.Equal(t, DefaultMaxResults, c.maxResults)
}
