package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/racetier/internal/domain/rating"
	"github.com/okian/racetier/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then race id ASC. "less" means ranks earlier, so an
// in-order traversal yields the ranking from best to worst.

type node struct {
	id    string
	score int
	prio  uint64
	left  *node
	right *node
}

func less(aScore int, aID string, bScore int, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	return y
}

func insert(n *node, id string, score int, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	return n
}

func deleteNode(n *node, id string, score int) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	return n
}

// collectAll appends every entry in rank order.
func collectAll(n *node, byID map[string]rating.Classification, out *[]Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, byID, out)
	if c, ok := byID[n.id]; ok {
		*out = append(*out, Entry{
			RaceID:        c.RaceID,
			OverallScore:  c.OverallScore,
			ComputedScore: c.ComputedScore,
			Tier:          c.PublishedTier,
			BaseTier:      c.BaseTier,
			State:         c.State,
		})
	}
	collectAll(n.right, byID, out)
}

// assignRanksWithTies gives equal scores the same rank; the next score
// takes the next consecutive rank.
func assignRanksWithTies(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].OverallScore != entries[i-1].OverallScore {
			rank++
		}
		entries[i].Rank = rank
	}
}

// snapshot is an immutable view published after every write.
type snapshot struct {
	ranked     []Entry
	position   map[string]int
	tierCounts map[rating.Tier]int
}

// TreapIndex ranks races by published score. Writes take the lock and
// publish a new snapshot; reads only load the snapshot.
type TreapIndex struct {
	mu   sync.Mutex
	root *node
	byID map[string]rating.Classification
	rng  *rand.Rand
	seed uint64

	snap atomic.Pointer[snapshot]
}

// NewTreapIndex constructs an empty index.
func NewTreapIndex(opts ...Option) *TreapIndex {
	s := &TreapIndex{
		byID: make(map[string]rating.Classification),
		seed: uint64(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed>>1|1))
	s.snap.Store(&snapshot{position: map[string]int{}, tierCounts: map[rating.Tier]int{}})
	return s
}

// Upsert implements Store.Upsert in O(log n) expected time plus the
// snapshot rebuild.
func (s *TreapIndex) Upsert(_ context.Context, c rating.Classification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[c.RaceID]; ok {
		if old == c {
			return false, nil
		}
		s.root = deleteNode(s.root, old.RaceID, old.OverallScore)
	}
	s.byID[c.RaceID] = c
	s.root = insert(s.root, c.RaceID, c.OverallScore, s.rng.Uint64())
	s.publishLocked()
	return true, nil
}

// Replace implements Store.Replace.
func (s *TreapIndex) Replace(_ context.Context, cs []rating.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.root = nil
	s.byID = make(map[string]rating.Classification, len(cs))
	for _, c := range cs {
		if old, ok := s.byID[c.RaceID]; ok {
			s.root = deleteNode(s.root, old.RaceID, old.OverallScore)
		}
		s.byID[c.RaceID] = c
		s.root = insert(s.root, c.RaceID, c.OverallScore, s.rng.Uint64())
	}
	s.publishLocked()
	return nil
}

// Rank returns the entry of raceID in O(1) from the current snapshot.
func (s *TreapIndex) Rank(_ context.Context, raceID string) (Entry, error) {
	snap := s.snap.Load()
	i, ok := snap.position[raceID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	return snap.ranked[i], nil
}

// TopN returns the top n entries ordered by score desc.
func (s *TreapIndex) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	ranked := s.snap.Load().ranked
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]Entry, n)
	copy(out, ranked[:n])
	return out, nil
}

// TierCounts returns a copy of the per-tier counts.
func (s *TreapIndex) TierCounts(_ context.Context) map[rating.Tier]int {
	counts := s.snap.Load().tierCounts
	out := make(map[rating.Tier]int, len(counts))
	for t, n := range counts {
		out[t] = n
	}
	return out
}

// Count returns the total number of races.
func (s *TreapIndex) Count(_ context.Context) int {
	return len(s.snap.Load().ranked)
}

// publishLocked must be called with s.mu held.
func (s *TreapIndex) publishLocked() {
	ranked := make([]Entry, 0, len(s.byID))
	collectAll(s.root, s.byID, &ranked)
	assignRanksWithTies(ranked)

	snap := &snapshot{
		ranked:     ranked,
		position:   make(map[string]int, len(ranked)),
		tierCounts: make(map[rating.Tier]int, 4),
	}
	for i, e := range ranked {
		snap.position[e.RaceID] = i
		snap.tierCounts[e.Tier]++
	}
	s.snap.Store(snap)
	metrics.UpdateRatedRaces(len(ranked))
}
