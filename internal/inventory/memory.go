package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/antoniostano/bolota/internal/normalize"
)

// MemoryRepository holds the catalogue in process memory, typically loaded
// from a CSV file.
type MemoryRepository struct {
	mu    sync.RWMutex
	items []indexedItem
}

type indexedItem struct {
	item   Item
	code   string
	tokens []string
	folded string
}

func NewMemoryRepository(items []Item) *MemoryRepository {
	r := &MemoryRepository{}
	_ = r.Replace(context.Background(), items)
	return r
}

func (r *MemoryRepository) FindByCode(_ context.Context, code string) (Item, error) {
	code = strings.TrimSpace(code)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, it := range r.items {
		if it.code != "" && strings.EqualFold(it.code, code) {
			return it.item, nil
		}
	}
	return Item{}, ErrNotFound
}

// SearchByText ranks items by how many query tokens their description
// contains; a description containing the whole query ranks first.
func (r *MemoryRepository) SearchByText(_ context.Context, query string, limit int) ([]Item, error) {
	q := normalize.Text(query)
	if q == "" {
		return nil, nil
	}
	qTokens := strings.Split(q, " ")

	type hit struct {
		item  Item
		score int
		order int
	}
	var hits []hit

	r.mu.RLock()
	for idx, it := range r.items {
		score := 0
		if strings.Contains(it.folded, q) {
			score += len(qTokens) + 1
		}
		for _, qt := range qTokens {
			for _, tok := range it.tokens {
				if strings.HasPrefix(tok, qt) {
					score++
					break
				}
			}
		}
		if score > 0 {
			hits = append(hits, hit{item: it.item, score: score, order: idx})
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].order < hits[j].order
	})

	if limit <= 0 || limit > len(hits) {
		limit = len(hits)
	}
	out := make([]Item, 0, limit)
	for _, h := range hits[:limit] {
		out = append(out, h.item)
	}
	return out, nil
}

func (r *MemoryRepository) Replace(_ context.Context, items []Item) error {
	indexed := make([]indexedItem, 0, len(items))
	for _, it := range items {
		folded := normalize.Text(it.Description)
		indexed = append(indexed, indexedItem{
			item:   it,
			code:   strings.TrimSpace(it.Code),
			tokens: strings.Fields(folded),
			folded: folded,
		})
	}
	r.mu.Lock()
	r.items = indexed
	r.mu.Unlock()
	return nil
}

// Len reports the catalogue size.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *MemoryRepository) Close() error { return nil }
