package twitch

import (
	"sort"
	"sync"
	"time"
)

// Lease is an active hub subscription and when it runs out.
type Lease struct {
	Topic     string
	Callback  string
	ExpiresAt time.Time
}

// DueAt reports whether the lease should be renewed at now, given the
// renewal window.
func (l Lease) DueAt(now time.Time, window time.Duration) bool {
	return !now.Add(window).Before(l.ExpiresAt)
}

// Leases is the registry of active subscriptions, keyed by topic.
type Leases struct {
	mu      sync.Mutex
	byTopic map[string]Lease
}

// NewLeases returns an empty registry.
func NewLeases() *Leases {
	return &Leases{byTopic: make(map[string]Lease)}
}

// Put creates or replaces the lease of l.Topic.
func (ls *Leases) Put(l Lease) {
	ls.mu.Lock()
	ls.byTopic[l.Topic] = l
	ls.mu.Unlock()
}

// Remove forgets topic.
func (ls *Leases) Remove(topic string) {
	ls.mu.Lock()
	delete(ls.byTopic, topic)
	ls.mu.Unlock()
}

// Get returns the lease of topic.
func (ls *Leases) Get(topic string) (Lease, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	l, ok := ls.byTopic[topic]
	return l, ok
}

// Len is the number of active leases.
func (ls *Leases) Len() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.byTopic)
}

// Due returns the leases expiring within window of now, soonest first.
func (ls *Leases) Due(now time.Time, window time.Duration) []Lease {
	ls.mu.Lock()
	var due []Lease
	for _, l := range ls.byTopic {
		if l.DueAt(now, window) {
			due = append(due, l)
		}
	}
	ls.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	return due
}
