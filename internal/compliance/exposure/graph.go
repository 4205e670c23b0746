// Package exposure keeps a bounded window of recent transfers and traces
// indirect taint through it.
package exposure

import (
	"sync"
	"time"

	"github.com/vietddude/purity/internal/core/domain"
)

// Edge is one transfer in the window, From -> To.
type Edge struct {
	TxID   string
	From   string
	To     string
	Origin domain.Origin
	Amount int64
	At     time.Time
}

func edgeFrom(tx domain.TransactionRecord) Edge {
	return Edge{
		TxID:   tx.ID,
		From:   tx.Sender,
		To:     tx.Recipient,
		Origin: tx.Origin,
		Amount: tx.Amount,
		At:     tx.Timestamp,
	}
}

// Graph is a directed multigraph of accounts bounded by edge count and age.
// Edges are kept in insertion order so eviction drops the oldest first.
type Graph struct {
	mu       sync.RWMutex
	incoming map[string][]Edge
	outDeg   map[string]int
	order    []Edge
	ids      map[string]struct{}
	maxEdges int
	maxAge   time.Duration
}

// NewGraph creates a window holding at most maxEdges edges no older than
// maxAge. Zero disables the respective bound.
func NewGraph(maxEdges int, maxAge time.Duration) *Graph {
	return &Graph{
		incoming: make(map[string][]Edge),
		outDeg:   make(map[string]int),
		ids:      make(map[string]struct{}),
		maxEdges: maxEdges,
		maxAge:   maxAge,
	}
}

// Add inserts a transaction as an edge. Duplicate ids are ignored.
// Reports whether the edge was inserted.
func (g *Graph) Add(tx domain.TransactionRecord) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.ids[tx.ID]; ok {
		return false
	}
	e := edgeFrom(tx)
	g.ids[e.TxID] = struct{}{}
	g.incoming[e.To] = append(g.incoming[e.To], e)
	g.outDeg[e.From]++
	g.order = append(g.order, e)

	for g.maxEdges > 0 && len(g.order) > g.maxEdges {
		g.removeOldestLocked()
	}
	return true
}

// AddBatch inserts several transactions and returns how many were new.
func (g *Graph) AddBatch(txs []domain.TransactionRecord) int {
	n := 0
	for _, tx := range txs {
		if g.Add(tx) {
			n++
		}
	}
	return n
}

// Incoming returns a copy of the edges that end at account.
func (g *Graph) Incoming(account string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edges := g.incoming[account]
	if len(edges) == 0 {
		return nil
	}
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// AccountStats summarises an account's activity inside the window.
type AccountStats struct {
	In       int
	Out      int
	LastSeen time.Time // latest incoming edge
}

// Stats returns window activity for account.
func (g *Graph) Stats(account string) AccountStats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	st := AccountStats{
		In:  len(g.incoming[account]),
		Out: g.outDeg[account],
	}
	for _, e := range g.incoming[account] {
		if e.At.After(st.LastSeen) {
			st.LastSeen = e.At
		}
	}
	return st
}

// Len returns the number of edges in the window.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Evict drops edges older than the window's max age relative to now and
// returns how many were removed.
func (g *Graph) Evict(now time.Time) int {
	if g.maxAge <= 0 {
		return 0
	}
	cutoff := now.Add(-g.maxAge)

	g.mu.Lock()
	defer g.mu.Unlock()

	// Imported ledger history is not time-ordered.
	kept := g.order[:0]
	removed := 0
	for _, e := range g.order {
		if !e.At.Before(cutoff) {
			kept = append(kept, e)
			continue
		}
		g.unlinkLocked(e)
		removed++
	}
	clear(g.order[len(kept):])
	g.order = kept
	return removed
}

func (g *Graph) removeOldestLocked() {
	e := g.order[0]
	g.order[0] = Edge{}
	g.order = g.order[1:]
	g.unlinkLocked(e)
}

func (g *Graph) unlinkLocked(e Edge) {
	delete(g.ids, e.TxID)
	if g.outDeg[e.From] <= 1 {
		delete(g.outDeg, e.From)
	} else {
		g.outDeg[e.From]--
	}

	edges := g.incoming[e.To]
	for i := range edges {
		if edges[i].TxID == e.TxID {
			edges = append(edges[:i], edges[i+1:]...)
			break
		}
	}
	if len(edges) == 0 {
		delete(g.incoming, e.To)
	} else {
		g.incoming[e.To] = edges
	}
}
