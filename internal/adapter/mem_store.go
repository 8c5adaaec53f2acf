package adapter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/quire-dev/quire/internal/model"
)

// MemStore keeps pages in memory. It backs ephemeral serve setups and is
// the natural test double for everything that speaks PageStore.
type MemStore struct {
	mu    sync.RWMutex
	pages map[model.PageID]string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{pages: make(map[model.PageID]string)}
}

// Put seeds a page directly, bypassing the context-carrying store calls.
func (s *MemStore) Put(page model.PageID, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pages[page] = source
}

// GetSource returns the stored source of a page.
func (s *MemStore) GetSource(_ context.Context, page model.PageID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	source, ok := s.pages[page]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPageNotFound, page)
	}

	return source, nil
}

// SaveSource stores source as the page's content.
func (s *MemStore) SaveSource(_ context.Context, page model.PageID, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pages[page] = source

	return nil
}

// Rename moves a page to a new id.
func (s *MemStore) Rename(_ context.Context, page, to model.PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	source, ok := s.pages[page]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPageNotFound, page)
	}

	if _, taken := s.pages[to]; taken {
		return fmt.Errorf("adapter: page %q already exists", to)
	}

	delete(s.pages, page)
	s.pages[to] = source

	return nil
}

// List returns all stored page ids in lexical order.
func (s *MemStore) List(_ context.Context) ([]model.PageID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]model.PageID, 0, len(s.pages))
	for id := range s.pages {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}
