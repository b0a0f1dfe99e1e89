// Package memory is an in-process cost store for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"costmanager/internal/core"
)

type Store struct {
	mu     sync.Mutex
	clock  core.Clock
	nextID int64
	items  []core.CostRecord

	settings map[string]string
}

// New returns an empty store reading time from clock (time.Now when nil).
func New(clock core.Clock) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{clock: clock, nextID: 1}
}

// AddCost validates and appends the cost.
func (s *Store) AddCost(_ context.Context, in core.CostInput) (core.CostRecord, error) {
	cost, err := in.Parse()
	if err != nil {
		return core.CostRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := core.NewCostRecord(cost, s.clock())
	rec.ID = s.nextID
	s.nextID++
	s.items = append(s.items, rec)
	return rec, nil
}

// GetAll returns a copy of every record in insertion order.
func (s *Store) GetAll(_ context.Context) ([]core.CostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CostRecord(nil), s.items...), nil
}

func (s *Store) Close() error { return nil }

// GetSetting returns the saved value of key.
func (s *Store) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

// PutSetting saves value under key, replacing any previous value.
func (s *Store) PutSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		s.settings = make(map[string]string)
	}
	s.settings[key] = value
	return nil
}
