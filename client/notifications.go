package craftlink

import (
	"sort"
	"sync"
)

// NotificationFeed reconciles the REST snapshot with the live push stream
// into one de-duplicated, ordered notification set. It is the single
// writer of that set; both the global stream and per-room streams may
// feed it concurrently, so every operation is atomic under one mutex.
//
// Read state is monotonic: once a notification is read, no later snapshot
// or push can flip it back to unread. This is what makes the race between
// "snapshot arrives after pushes" and "push arrives for a snapshotted id"
// safe in either order.
type NotificationFeed struct {
	mu   sync.Mutex
	byID map[int64]Notification
}

// NewNotificationFeed returns an empty feed.
func NewNotificationFeed() *NotificationFeed {
	return &NotificationFeed{byID: make(map[int64]Notification)}
}

// LoadSnapshot merges a REST-fetched batch into the feed. Entries already
// present (from earlier pushes) are updated in place; their read state is
// kept when either side has it set.
func (f *NotificationFeed) LoadSnapshot(items []Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range items {
		f.merge(n)
	}
}

// ApplyPush merges a single pushed notification. A repeated ID updates
// the existing entry instead of duplicating it.
func (f *NotificationFeed) ApplyPush(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merge(n)
}

func (f *NotificationFeed) merge(n Notification) {
	if cur, ok := f.byID[n.ID]; ok && cur.IsRead {
		n.IsRead = true
	}
	f.byID[n.ID] = n
}

// MarkRead flips a single notification to read. Returns false when the
// ID is unknown. The backend acknowledgement is the caller's concern
// (optimistic local mutation, fire-and-forget confirmation).
func (f *NotificationFeed) MarkRead(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.byID[id]
	if !ok {
		return false
	}
	n.IsRead = true
	f.byID[id] = n
	return true
}

// MarkAllRead flips every notification to read.
func (f *NotificationFeed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, n := range f.byID {
		n.IsRead = true
		f.byID[id] = n
	}
}

// View returns the reconciled set sorted by CreatedAt descending, ties
// broken by ID descending. The slice is a copy; mutating it does not
// affect the feed.
func (f *NotificationFeed) View() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, 0, len(f.byID))
	for _, n := range f.byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// UnreadCount is derived from the merged set on every call, never
// stored, so it cannot drift from View.
func (f *NotificationFeed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.byID {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// Len returns the number of distinct notifications.
func (f *NotificationFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}
