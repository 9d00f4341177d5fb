package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antoniostano/bolota/internal/reliability"
)

// HTTPClient queries a remote inventory endpoint that answers
// GET <url>?query=<term> with {"items": [...]}.
type HTTPClient struct {
	url    string
	retry  reliability.Policy
	client *http.Client
}

func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		url:    strings.TrimSpace(endpoint),
		retry:  reliability.Policy{Attempts: 2, Base: 200 * time.Millisecond, Cap: time.Second},
		client: &http.Client{Timeout: timeout},
	}
}

type itemsResponse struct {
	Items []Item `json:"items"`
}

func (c *HTTPClient) FindMedication(ctx context.Context, term string) ([]Item, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptyTerm
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("parse inventory url: %w", err)
	}
	q := u.Query()
	q.Set("query", term)
	u.RawQuery = q.Encode()

	var out itemsResponse
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
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
			return &reliability.StatusError{Service: "inventory", Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inventory lookup: %w", err)
	}
	return out.Items, nil
}
