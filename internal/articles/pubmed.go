package articles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/antoniostano/bolota/internal/reliability"
)

const (
	DefaultPubMedURL  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	DefaultMaxResults = 3

	articleLinkPrefix = "https://pubmed.ncbi.nlm.nih.gov/"
)

var ErrEmptyTerm = errors.New("search term is required")

// PubMedConfig controls the E-utilities client.
type PubMedConfig struct {
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
	Retry      reliability.Policy
}

// PubMedClient searches PubMed through the NCBI E-utilities esearch and
// esummary endpoints.
type PubMedClient struct {
	baseURL    string
	maxResults int
	retry      reliability.Policy
	client     *http.Client
}

func NewPubMedClient(cfg PubMedConfig) *PubMedClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultPubMedURL
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retry := cfg.Retry
	if retry.Attempts <= 0 {
		retry = reliability.Policy{Attempts: 2, Base: 250 * time.Millisecond, Cap: time.Second}
	}
	return &PubMedClient{
		baseURL:    baseURL,
		maxResults: maxResults,
		retry:      retry,
		client:     &http.Client{Timeout: timeout},
	}
}

type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type summaryRecord struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	PubDate string `json:"pubdate"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

// FindArticles returns up to MaxResults articles for term, in PubMed
// relevance order.
func (c *PubMedClient) FindArticles(ctx context.Context, term string) ([]Article, error) {
	return c.Search(ctx, term, c.maxResults)
}

// Search returns up to limit articles for term.
func (c *PubMedClient) Search(ctx context.Context, term string, limit int) ([]Article, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptyTerm
	}
	if limit <= 0 {
		limit = c.maxResults
	}

	var search esearchResponse
	err := c.getJSON(ctx, "esearch.fcgi", url.Values{
		"db":      {"pubmed"},
		"retmode": {"json"},
		"retmax":  {strconv.Itoa(limit)},
		"term":    {term},
	}, &search)
	if err != nil {
		return nil, fmt.Errorf("pubmed esearch: %w", err)
	}
	ids := search.Result.IDList
	if len(ids) == 0 {
		return nil, nil
	}

	var summary esummaryResponse
	err = c.getJSON(ctx, "esummary.fcgi", url.Values{
		"db":      {"pubmed"},
		"retmode": {"json"},
		"id":      {strings.Join(ids, ",")},
	}, &summary)
	if err != nil {
		return nil, fmt.Errorf("pubmed esummary: %w", err)
	}

	out := make([]Article, 0, len(ids))
	for _, id := range ids {
		a := Article{ID: id, Link: articleLinkPrefix + id + "/"}
		if raw, ok := summary.Result[id]; ok {
			var rec summaryRecord
			if err := json.Unmarshal(raw, &rec); err == nil {
				a.Title = strings.TrimSpace(rec.Title)
				a.Journal = strings.TrimSpace(rec.Source)
				a.PubDate = strings.TrimSpace(rec.PubDate)
				for _, au := range rec.Authors {
					if name := strings.TrimSpace(au.Name); name != "" {
						a.Authors = append(a.Authors, name)
					}
				}
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func (c *PubMedClient) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := c.baseURL + "/" + endpoint + "?" + params.Encode()
	return c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		res, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer res.Body.Close()

		if res.StatusCode < 200 || res.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
			return &reliability.StatusError{Service: "pubmed", Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}
