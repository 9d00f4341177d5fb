// Package inventory answers price and stock questions from the local
// medication catalogue.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
)

// Status is derived from stock.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusOutOfStock Status = "out_of_stock"
)

var (
	ErrEmptyTerm = errors.New("search term is required")
	ErrNotFound  = errors.New("medication not found")
)

// Item is one catalogue entry.
type Item struct {
	Code        string  `json:"code,omitempty"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

// Status reports whether the item can be sold right now.
func (i Item) Status() Status {
	if i.Stock > 0 {
		return StatusAvailable
	}
	return StatusOutOfStock
}

// MarshalJSON adds the derived status to the wire form.
func (i Item) MarshalJSON() ([]byte, error) {
	type wire Item
	return json.Marshal(struct {
		wire
		Status Status `json:"status"`
	}{wire: wire(i), Status: i.Status()})
}

// Finder resolves a free-text medication term to catalogue items.
type Finder interface {
	FindMedication(ctx context.Context, term string) ([]Item, error)
}

// Repository is the storage behind a Service.
type Repository interface {
	// FindByCode returns ErrNotFound when no item carries code.
	FindByCode(ctx context.Context, code string) (Item, error)
	SearchByText(ctx context.Context, query string, limit int) ([]Item, error)
	// Replace swaps the whole catalogue for items.
	Replace(ctx context.Context, items []Item) error
	Close() error
}
