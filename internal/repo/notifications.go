package repo

import (
	"fmt"
	"sync"

	"touchline/internal/domain"
)

// Notifications is the inbox. Entries are never deleted; dismissal only hides them.
type Notifications struct {
	mu    sync.RWMutex
	items []*domain.Notification
	byID  map[string]*domain.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{byID: make(map[string]*domain.Notification)}
}

// Insert stores a prepared notification. The caller assigns id and timestamps.
func (r *Notifications) Insert(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := n
	r.items = append(r.items, &stored)
	r.byID[n.ID] = &stored
}

// List returns every notification, most recent first, dismissed ones included.
func (r *Notifications) List() []domain.Notification {
	return r.collect(func(*domain.Notification) bool { return true })
}

// Pending returns the non-dismissed notifications, most recent first.
func (r *Notifications) Pending() []domain.Notification {
	return r.collect(func(n *domain.Notification) bool { return !n.Dismissed })
}

func (r *Notifications) collect(keep func(*domain.Notification) bool) []domain.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Notification, 0, len(r.items))
	for i := len(r.items) - 1; i >= 0; i-- {
		if keep(r.items[i]) {
			out = append(out, *r.items[i])
		}
	}
	return out
}

func (r *Notifications) Get(id string) (domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byID[id]
	if !ok {
		return domain.Notification{}, fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return *n, nil
}

func (r *Notifications) MarkRead(id string) (domain.Notification, error) {
	return r.update(id, func(n *domain.Notification) { n.Read = true })
}

func (r *Notifications) Dismiss(id string) (domain.Notification, error) {
	return r.update(id, func(n *domain.Notification) { n.Dismissed = true })
}

func (r *Notifications) update(id string, fn func(*domain.Notification)) (domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.byID[id]
	if !ok {
		return domain.Notification{}, fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	fn(n)
	return *n, nil
}

// UnreadCount counts entries that are neither read nor dismissed.
func (r *Notifications) UnreadCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, n := range r.items {
		if !n.Read && !n.Dismissed {
			count++
		}
	}
	return count
}
