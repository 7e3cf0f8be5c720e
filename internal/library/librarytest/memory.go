// Package librarytest provides an in-memory media server for tests.
package librarytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/saltyorg/easierlife/internal/library"
)

// Update records one UpdateItem call
type Update struct {
	Item   library.Item
	Reason library.UpdateReason
}

// Refresh records one RefreshMetadata call
type Refresh struct {
	ItemID  string
	Options library.RefreshOptions
}

// Memory implements library.Repository, library.Refresher and library.LibraryLister in memory.
// Items keep their insertion order, which is also the enumeration order.
type Memory struct {
	mu        sync.Mutex
	items     map[string]*library.Item
	order     []string
	libraries []library.Library
	updates   []Update
	refreshes []Refresh

	// RefreshErrors makes RefreshMetadata fail for the given item ids
	RefreshErrors map[string]error
	// UpdateErrors makes UpdateItem fail for the given item ids
	UpdateErrors map[string]error
	// OnRefresh runs before each refresh is recorded
	OnRefresh func(item *library.Item)
}

// NewMemory creates an empty in-memory server
func NewMemory() *Memory {
	return &Memory{
		items:         make(map[string]*library.Item),
		RefreshErrors: make(map[string]error),
		UpdateErrors:  make(map[string]error),
	}
}

// Add stores items. Later additions with the same id replace the stored copy but keep its position.
func (m *Memory) Add(items ...*library.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if _, ok := m.items[item.ID]; !ok {
			m.order = append(m.order, item.ID)
		}
		m.items[item.ID] = item.Clone()
		if item.Kind == library.KindCollectionFolder {
			m.libraries = append(m.libraries, library.Library{ID: item.ID, Name: item.Name})
		}
	}
}

// Item returns a copy of the stored item
func (m *Memory) Item(id string) *library.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].Clone()
}

// Updates returns the recorded UpdateItem calls
func (m *Memory) Updates() []Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Update(nil), m.updates...)
}

// Refreshes returns the recorded RefreshMetadata calls
func (m *Memory) Refreshes() []Refresh {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Refresh(nil), m.refreshes...)
}

// RefreshedIDs returns the item ids passed to RefreshMetadata, in call order
func (m *Memory) RefreshedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.refreshes))
	for _, r := range m.refreshes {
		ids = append(ids, r.ItemID)
	}
	return ids
}

// GetItem implements library.Repository
func (m *Memory) GetItem(ctx context.Context, id string) (*library.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, library.ErrItemNotFound)
	}
	return item.Clone(), nil
}

// RecursiveChildren implements library.Repository with a depth-first walk
func (m *Memory) RecursiveChildren(ctx context.Context, parentID string) ([]*library.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*library.Item
	m.walkLocked(parentID, &out)
	return out, nil
}

func (m *Memory) walkLocked(parentID string, out *[]*library.Item) {
	for _, id := range m.order {
		item := m.items[id]
		if item.ParentID != parentID {
			continue
		}
		*out = append(*out, item.Clone())
		m.walkLocked(item.ID, out)
	}
}

// Seasons implements library.Repository
func (m *Memory) Seasons(ctx context.Context, series *library.Item) ([]*library.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*library.Item
	for _, id := range m.order {
		item := m.items[id]
		if item.Kind == library.KindSeason && (item.SeriesID == series.ID || item.ParentID == series.ID) {
			out = append(out, item.Clone())
		}
	}
	return out, nil
}

// Episodes implements library.Repository
func (m *Memory) Episodes(ctx context.Context, season *library.Item) ([]*library.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*library.Item
	for _, id := range m.order {
		item := m.items[id]
		if item.Kind == library.KindEpisode && item.SeasonID == season.ID {
			out = append(out, item.Clone())
		}
	}
	return out, nil
}

// UpdateItem implements library.Repository
func (m *Memory) UpdateItem(ctx context.Context, item *library.Item, reason library.UpdateReason) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.UpdateErrors[item.ID]; err != nil {
		return err
	}
	if _, ok := m.items[item.ID]; !ok {
		return fmt.Errorf("%s: %w", item.ID, library.ErrItemNotFound)
	}
	m.items[item.ID] = item.Clone()
	m.updates = append(m.updates, Update{Item: *item.Clone(), Reason: reason})
	return nil
}

// RefreshMetadata implements library.Refresher
func (m *Memory) RefreshMetadata(ctx context.Context, item *library.Item, opts library.RefreshOptions) error {
	if m.OnRefresh != nil {
		m.OnRefresh(item)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes = append(m.refreshes, Refresh{ItemID: item.ID, Options: opts})
	if err := m.RefreshErrors[item.ID]; err != nil {
		return err
	}
	return ctx.Err()
}

// Libraries implements library.LibraryLister
func (m *Memory) Libraries(ctx context.Context) ([]library.Library, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]library.Library(nil), m.libraries...), nil
}

// EpisodeCount returns the number of episodes currently linked to a season
func (m *Memory) EpisodeCount(seasonID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, item := range m.items {
		if item.Kind == library.KindEpisode && item.SeasonID == seasonID {
			n++
		}
	}
	return n
}
