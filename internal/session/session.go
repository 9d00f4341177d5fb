// Package session keeps the small per-conversation dialogue state.
package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Step is the single pending-slot flag of a conversation.
type Step string

const (
	StepNone                       Step = ""
	StepAwaitingMedForAvailability Step = "awaiting_med_for_availability"
)

var ErrEmptyID = errors.New("session id is required")

// Session is the dialogue state of one conversation.
type Session struct {
	ID             string    `json:"session_id"`
	LastMedication string    `json:"last_medication,omitempty"`
	Step           Step      `json:"step,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// Patch is a partial update; nil fields keep their stored value.
type Patch struct {
	LastMedication *string
	Step           *Step
}

// WithLastMedication returns a copy of p that sets LastMedication.
func (p Patch) WithLastMedication(name string) Patch {
	p.LastMedication = &name
	return p
}

// WithStep returns a copy of p that sets Step.
func (p Patch) WithStep(step Step) Patch {
	p.Step = &step
	return p
}

func (p Patch) apply(s Session) Session {
	if p.LastMedication != nil {
		s.LastMedication = *p.LastMedication
	}
	if p.Step != nil {
		s.Step = *p.Step
	}
	return s
}

// Store maps session ids to dialogue state.
//
// Get returns the default session for unknown ids without storing it. Set
// merges the patch into the stored or default session in one atomic step and
// returns the result. Turns of the same session are expected to arrive
// sequentially; Store does not serialize them.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Set(ctx context.Context, id string, patch Patch) (Session, error)
	Clear(ctx context.Context, id string) error
	Close() error
}

// Default returns the state of a conversation that has not been stored yet.
func Default(id string) Session {
	return Session{ID: id, Step: StepNone}
}

// LastMedication reads the last resolved medication of a session.
func LastMedication(ctx context.Context, store Store, id string) (string, error) {
	s, err := store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.LastMedication, nil
}

// SetLastMedication records name as the last resolved medication.
func SetLastMedication(ctx context.Context, store Store, id, name string) error {
	_, err := store.Set(ctx, id, Patch{}.WithLastMedication(name))
	return err
}

// NewStore creates a postgres-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	return nil
}
