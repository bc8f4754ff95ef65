// Package dedupe tracks idempotency keys of match submissions.
package dedupe

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// Deduper remembers which idempotency keys were submitted and which match
// each one produced.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// When the key was seen, matchID is the match it produced, or "" while
	// the first submission is still in flight.
	SeenAndRecord(ctx context.Context, key string) (matchID string, seen bool)

	// Complete attaches the settled match to a recorded key.
	Complete(ctx context.Context, key, matchID string)

	// Unrecord forgets key so the submission can be retried. Used when the
	// first attempt failed.
	Unrecord(ctx context.Context, key string)

	// Forget drops every key that points at matchID. Used after the match
	// is removed so that a replay settles a fresh match.
	Forget(ctx context.Context, matchID string)

	Size() int64
}

// Key scopes an idempotency key to its season.
func Key(seasonID, key string) string {
	return seasonID + ":" + key
}

type node struct {
	key        string
	matchID    string
	prev, next *node
}

func (n *node) reset() {
	n.key = ""
	n.matchID = ""
	n.prev = nil
	n.next = nil
}

// inMemoryDeduper keeps keys in a doubly linked list, newest at head. In
// bounded mode the tail is evicted once maxSize is reached. byMatch indexes
// completed keys by the match they produced.
type inMemoryDeduper struct {
	mu       sync.RWMutex
	seen     map[string]*node
	byMatch  map[string][]*node
	head     *node
	tail     *node
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*node)
	d.byMatch = make(map[string][]*node)
	d.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.seen[key]; ok {
		return n.matchID, true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize && d.tail != nil {
		d.unlink(d.tail)
	}

	n := d.nodePool.Get().(*node)
	n.key = key
	n.next = d.head
	if d.head != nil {
		d.head.prev = n
	} else {
		d.tail = n
	}
	d.head = n
	d.seen[key] = n
	d.size.Add(1)
	return "", false
}

func (d *inMemoryDeduper) Complete(_ context.Context, key, matchID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.seen[key]
	if !ok || n.matchID == matchID {
		return
	}
	d.dropMatchIndex(n)
	n.matchID = matchID
	if matchID != "" {
		d.byMatch[matchID] = append(d.byMatch[matchID], n)
	}
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.seen[key]; ok {
		d.unlink(n)
	}
}

func (d *inMemoryDeduper) Forget(_ context.Context, matchID string) {
	if matchID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, n := range slices.Clone(d.byMatch[matchID]) {
		d.unlink(n)
	}
}

// dropMatchIndex removes n from byMatch. Must be called with d.mu held.
func (d *inMemoryDeduper) dropMatchIndex(n *node) {
	if n.matchID == "" {
		return
	}
	nodes := slices.DeleteFunc(d.byMatch[n.matchID], func(o *node) bool { return o == n })
	if len(nodes) == 0 {
		delete(d.byMatch, n.matchID)
	} else {
		d.byMatch[n.matchID] = nodes
	}
}

// unlink removes n from the list and both maps in O(1) plus the handful of
// keys sharing its match. Must be called with d.mu held.
func (d *inMemoryDeduper) unlink(n *node) {
	delete(d.seen, n.key)
	d.dropMatchIndex(n)
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.tail = n.prev
	}
	n.reset()
	d.nodePool.Put(n)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
