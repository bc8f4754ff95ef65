// Package standings keeps an in-memory ranking index per season. It is a
// read model: the store's live scores are authoritative and the index is
// rebuilt from them at start-up.
package standings

import (
	"context"
	"sync"
	"time"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/metrics"
)

const storeName = "standings"

// Entry is one row of a season table.
type Entry struct {
	Rank           int    `json:"rank"`
	SeasonPlayerID string `json:"season_player_id"`
	PlayerID       string `json:"player_id"`
	Name           string `json:"name"`
	Score          int    `json:"score"`
}

type record struct {
	score    int
	playerID string
	name     string
}

type board struct {
	root *node
	byID map[string]record
}

func newBoard() *board { return &board{byID: make(map[string]record)} }

func (b *board) put(e Entry) {
	if old, ok := b.byID[e.SeasonPlayerID]; ok {
		b.root = deleteNode(b.root, e.SeasonPlayerID, old.score)
	}
	b.byID[e.SeasonPlayerID] = record{score: e.Score, playerID: e.PlayerID, name: e.Name}
	b.root = insert(b.root, e.SeasonPlayerID, e.Score)
}

func (b *board) entry(n *node) Entry {
	rec := b.byID[n.id]
	return Entry{SeasonPlayerID: n.id, PlayerID: rec.playerID, Name: rec.name, Score: rec.score}
}

// Standings holds one treap per season.
type Standings struct {
	mu                    sync.RWMutex
	boards                map[string]*board
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// New constructs the index and starts its metrics updater.
func New(ctx context.Context, opts ...Option) *Standings {
	s := &Standings{
		boards:                make(map[string]*board),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background goroutine.
func (s *Standings) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *Standings) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateStandingsEntries(s.Total())
			}
		}
	}()
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(storeName, op, float64(time.Since(start).Milliseconds()))
}

// Put inserts or replaces a season player's row.
func (s *Standings) Put(_ context.Context, seasonID string, e Entry) {
	defer observe("put", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[seasonID]
	if !ok {
		b = newBoard()
		s.boards[seasonID] = b
	}
	b.put(e)
}

// SetScore moves a known season player to a new score. It reports false
// when the season player is not indexed.
func (s *Standings) SetScore(_ context.Context, seasonID, seasonPlayerID string, score int) bool {
	defer observe("set_score", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[seasonID]
	if !ok {
		return false
	}
	rec, ok := b.byID[seasonPlayerID]
	if !ok {
		return false
	}
	if rec.score == score {
		return true
	}
	b.put(Entry{SeasonPlayerID: seasonPlayerID, PlayerID: rec.playerID, Name: rec.name, Score: score})
	return true
}

// Reset replaces a season's table with entries.
func (s *Standings) Reset(_ context.Context, seasonID string, entries []Entry) {
	defer observe("reset", time.Now())
	b := newBoard()
	for _, e := range entries {
		b.put(e)
	}
	s.mu.Lock()
	s.boards[seasonID] = b
	s.mu.Unlock()
}

// TopN returns the best n rows of a season. Equal scores share a rank and
// the next distinct score skips ahead (1, 1, 3).
func (s *Standings) TopN(_ context.Context, seasonID string, n int) ([]Entry, error) {
	defer observe("top_n", time.Now())
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[seasonID]
	if !ok {
		return []Entry{}, nil
	}
	nodes := make([]*node, 0, min(n, len(b.byID)))
	collectTopN(b.root, n, &nodes)

	out := make([]Entry, len(nodes))
	for i, nd := range nodes {
		out[i] = b.entry(nd)
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out, nil
}

// Rank returns one season player's row in O(log n).
func (s *Standings) Rank(_ context.Context, seasonID, seasonPlayerID string) (Entry, error) {
	defer observe("rank", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[seasonID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	rec, ok := b.byID[seasonPlayerID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{
		Rank:           countAbove(b.root, rec.score) + 1,
		SeasonPlayerID: seasonPlayerID,
		PlayerID:       rec.playerID,
		Name:           rec.name,
		Score:          rec.score,
	}, nil
}

// Total returns the number of rows across seasons.
func (s *Standings) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, b := range s.boards {
		n += len(b.byID)
	}
	return n
}
