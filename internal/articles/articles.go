// Package articles looks up scientific literature about a medication.
package articles

import "context"

// Article is one literature record.
type Article struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Journal string   `json:"journal"`
	Authors []string `json:"authors"`
	Summary string   `json:"summary"`
	PubDate string   `json:"pubdate"`
	Link    string   `json:"link"`
}

// Finder searches articles by free-text term.
type Finder interface {
	FindArticles(ctx context.Context, term string) ([]Article, error)
}
