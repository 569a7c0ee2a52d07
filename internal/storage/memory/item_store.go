// Package memory provides in-memory store implementations for development and tests.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/JakeFAU/contact-miner/internal/miner"
)

// ItemStore keeps work items in memory in insertion order.
type ItemStore struct {
	mu    sync.RWMutex
	items map[string]miner.Item
	order []string
}

// NewItemStore constructs an ItemStore holding items.
func NewItemStore(items ...miner.Item) (*ItemStore, error) {
	s := &ItemStore{items: make(map[string]miner.Item)}
	for _, item := range items {
		if err := s.Insert(item); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewItemStoreFromWebsites seeds one pending item per website with
// sequential IDs starting at 1.
func NewItemStoreFromWebsites(websites []string) *ItemStore {
	s := &ItemStore{items: make(map[string]miner.Item, len(websites))}
	for i, w := range websites {
		id := strconv.Itoa(i + 1)
		s.items[id] = miner.Item{ID: id, Website: w}
		s.order = append(s.order, id)
	}
	return s
}

// Insert adds a new item.
func (s *ItemStore) Insert(item miner.Item) error {
	if item.ID == "" {
		return fmt.Errorf("item id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return fmt.Errorf("item %s already exists", item.ID)
	}
	s.items[item.ID] = cloneItem(item)
	s.order = append(s.order, item.ID)
	return nil
}

// Get returns a copy of the item with id.
func (s *ItemStore) Get(id string) (miner.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return cloneItem(item), ok
}

// All returns copies of every item in insertion order.
func (s *ItemStore) All() []miner.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]miner.Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneItem(s.items[id]))
	}
	return out
}

// FindPending returns up to limit pending items in insertion order.
func (s *ItemStore) FindPending(_ context.Context, limit int) ([]miner.Item, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0, got %d", limit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []miner.Item
	for _, id := range s.order {
		if len(out) >= limit {
			break
		}
		if item := s.items[id]; item.IsPending() {
			out = append(out, cloneItem(item))
		}
	}
	return out, nil
}

// SaveResult overwrites Email and MiningStatus of an existing item.
func (s *ItemStore) SaveResult(_ context.Context, item miner.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[item.ID]
	if !ok {
		return fmt.Errorf("item %s not found", item.ID)
	}
	stored.Email = cloneEmails(item.Email)
	stored.MiningStatus = item.MiningStatus
	s.items[item.ID] = stored
	return nil
}

// ResetFailed clears every failed status.
func (s *ItemStore) ResetFailed(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, item := range s.items {
		if !item.MiningStatus.IsFailed() {
			continue
		}
		item.MiningStatus = miner.StatusPending
		s.items[id] = item
		n++
	}
	return n, nil
}

// Stats counts items by state.
func (s *ItemStore) Stats(_ context.Context) (miner.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats miner.Stats
	for _, item := range s.items {
		if item.IsPending() {
			stats.Pending++
		}
		switch {
		case item.MiningStatus == miner.StatusDone:
			stats.Done++
		case item.MiningStatus.IsFailed():
			stats.Failed++
		}
		if strings.TrimSpace(item.Website) != "" {
			stats.WithWebsite++
		}
	}
	return stats, nil
}

// Close is a no-op.
func (s *ItemStore) Close() {}

func cloneItem(item miner.Item) miner.Item {
	item.Email = cloneEmails(item.Email)
	return item
}

func cloneEmails(emails []string) []string {
	if emails == nil {
		return nil
	}
	return append([]string{}, emails...)
}
