// Package activity keeps in-memory statistics about metadata replacements.
package activity

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saltyorg/easierlife/internal/library"
)

const (
	// MaxRecords is the number of per-item records kept before the oldest is evicted
	MaxRecords = 100
	// RecentLimit is the number of records returned in a statistics snapshot
	RecentLimit = 20
)

// Record is the last known outcome for one item
type Record struct {
	ItemID      string    `json:"ItemId"`
	ItemName    string    `json:"ItemName"`
	ItemType    string    `json:"ItemType"`
	ProcessedAt time.Time `json:"ProcessedAt"`
	Success     bool      `json:"Success"`
}

// Statistics is a point-in-time snapshot of the tracker
type Statistics struct {
	TotalItemsProcessed int64      `json:"TotalItemsProcessed"`
	TotalItemsSucceeded int64      `json:"TotalItemsSucceeded"`
	TotalItemsFailed    int64      `json:"TotalItemsFailed"`
	LastActivityTime    *time.Time `json:"LastActivityTime"`
	PluginStartTime     time.Time  `json:"PluginStartTime"`
	RecentActivity      []Record   `json:"RecentActivity"`
}

// Tracker counts processed items and remembers the most recent outcome per item.
// A nil *Tracker is valid and records nothing.
type Tracker struct {
	mu           sync.Mutex
	processed    int64
	succeeded    int64
	failed       int64
	lastActivity *time.Time
	startTime    time.Time

	records sync.Map // item id -> Record
	size    atomic.Int64

	now      func() time.Time
	onRecord func(Record)
	onReset  func()
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a tracker whose start time is now
func New(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.startTime = t.now()
	return t
}

// OnRecord registers a callback invoked after every recorded outcome
func (t *Tracker) OnRecord(fn func(Record)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.onRecord = fn
	t.mu.Unlock()
}

// OnReset registers a callback invoked after Reset
func (t *Tracker) OnReset(fn func()) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.onReset = fn
	t.mu.Unlock()
}

// RecordItemProcessed counts one outcome and stores it as the item's latest record
func (t *Tracker) RecordItemProcessed(item *library.Item, success bool) {
	if t == nil || item == nil {
		return
	}
	now := t.now()

	t.mu.Lock()
	t.processed++
	if success {
		t.succeeded++
	} else {
		t.failed++
	}
	last := now
	t.lastActivity = &last
	hook := t.onRecord
	t.mu.Unlock()

	rec := Record{
		ItemID:      item.ID,
		ItemName:    item.Name,
		ItemType:    string(item.Kind),
		ProcessedAt: now,
		Success:     success,
	}
	if _, loaded := t.records.Swap(item.ID, rec); !loaded {
		t.size.Add(1)
	}
	if t.size.Load() > MaxRecords {
		t.evictOldest()
	}

	if hook != nil {
		hook(rec)
	}
}

// evictOldest drops the record with the smallest ProcessedAt. Concurrent
// inserts may briefly push the map past the cap.
func (t *Tracker) evictOldest() {
	var (
		oldestID string
		oldestAt time.Time
		found    bool
	)
	t.records.Range(func(key, value any) bool {
		rec := value.(Record)
		if !found || rec.ProcessedAt.Before(oldestAt) {
			oldestID = key.(string)
			oldestAt = rec.ProcessedAt
			found = true
		}
		return true
	})
	if !found {
		return
	}
	if _, loaded := t.records.LoadAndDelete(oldestID); loaded {
		t.size.Add(-1)
	}
}

// Statistics returns a snapshot of the counters and the most recent records, newest first
func (t *Tracker) Statistics() Statistics {
	if t == nil {
		return Statistics{RecentActivity: []Record{}}
	}

	t.mu.Lock()
	stats := Statistics{
		TotalItemsProcessed: t.processed,
		TotalItemsSucceeded: t.succeeded,
		TotalItemsFailed:    t.failed,
		PluginStartTime:     t.startTime,
	}
	if t.lastActivity != nil {
		last := *t.lastActivity
		stats.LastActivityTime = &last
	}
	t.mu.Unlock()

	stats.RecentActivity = t.RecentActivity(RecentLimit)
	return stats
}

// RecentActivity returns up to limit records ordered by ProcessedAt descending
func (t *Tracker) RecentActivity(limit int) []Record {
	if t == nil {
		return []Record{}
	}
	recs := make([]Record, 0, t.size.Load())
	t.records.Range(func(_, value any) bool {
		recs = append(recs, value.(Record))
		return true
	})
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].ProcessedAt.Equal(recs[j].ProcessedAt) {
			return recs[i].ItemID < recs[j].ItemID
		}
		return recs[i].ProcessedAt.After(recs[j].ProcessedAt)
	})
	if limit >= 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// Reset zeroes the counters, clears the records and restarts the clock
func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.processed = 0
	t.succeeded = 0
	t.failed = 0
	t.lastActivity = nil
	t.startTime = t.now()
	hook := t.onReset
	t.mu.Unlock()

	t.records.Clear()
	t.size.Store(0)

	if hook != nil {
		hook()
	}
}
