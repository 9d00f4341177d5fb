package inventory

import (
	"context"
	"errors"
	"strings"
)

const defaultSearchLimit = 10

// Service looks a term up as a product code first and falls back to text
// search over descriptions.
type Service struct {
	repo  Repository
	limit int
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, limit: defaultSearchLimit}
}

func (s *Service) FindMedication(ctx context.Context, term string) ([]Item, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptyTerm
	}

	item, err := s.repo.FindByCode(ctx, term)
	switch {
	case err == nil:
		return []Item{item}, nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	return s.repo.SearchByText(ctx, term, s.limit)
}

// Replace swaps the catalogue behind the service.
func (s *Service) Replace(ctx context.Context, items []Item) error {
	return s.repo.Replace(ctx, items)
}

func (s *Service) Close() error {
	return s.repo.Close()
}
