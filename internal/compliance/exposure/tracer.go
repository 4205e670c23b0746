package exposure

import (
	"github.com/vietddude/purity/internal/core/domain"
)

// Cause names why a trace came back tainted.
type Cause string

const (
	CauseExchangeOrigin  Cause = "exchange_origin"
	CauseExchangeAccount Cause = "exchange_account"
	CauseFlaggedAccount  Cause = "flagged_account"
	CauseCycle           Cause = "cycle"
	CauseNodeCap         Cause = "node_cap"
)

// Verdict is the result of a trace. Path runs from the traced sender back to
// the offending ancestor.
type Verdict struct {
	Tainted bool
	Cause   Cause
	Path    []string
	Visited int
}

// AccountSet reports membership, e.g. the known exchange directory.
type AccountSet interface {
	Contains(account string) bool
}

// FlagChecker reports whether an account is currently flagged on the watchlist.
type FlagChecker interface {
	IsFlagged(account string) bool
}

// Tracer walks incoming edges breadth-first from a transaction's sender.
type Tracer struct {
	hopLimit  int
	nodeCap   int
	exchanges AccountSet
	flags     FlagChecker
}

// NewTracer creates a tracer. exchanges and flags may be nil.
func NewTracer(hopLimit, nodeCap int, exchanges AccountSet, flags FlagChecker) *Tracer {
	return &Tracer{
		hopLimit:  hopLimit,
		nodeCap:   nodeCap,
		exchanges: exchanges,
		flags:     flags,
	}
}

type visit struct {
	parent string
	depth  int
}

// Trace decides whether tx's sender is exposed to a taint source within the
// hop limit. A walk that revisits an account on its own ancestry is a cycle
// and is tainted; an account reached twice through different branches is
// skipped.
func (t *Tracer) Trace(g *Graph, tx domain.TransactionRecord) Verdict {
	start := tx.Sender
	if t.isExchange(start) {
		return Verdict{Tainted: true, Cause: CauseExchangeAccount, Path: []string{start}, Visited: 1}
	}

	visited := map[string]visit{start: {depth: 0}}
	queue := []string{start}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		depth := visited[node].depth
		if depth >= t.hopLimit {
			continue
		}

		for _, e := range g.Incoming(node) {
			from := e.From
			tainted := func(c Cause) Verdict {
				return Verdict{
					Tainted: true,
					Cause:   c,
					Path:    append(pathTo(visited, node), from),
					Visited: len(visited),
				}
			}

			switch {
			case e.Origin == domain.OriginExchange:
				return tainted(CauseExchangeOrigin)
			case t.isExchange(from):
				return tainted(CauseExchangeAccount)
			case t.flags != nil && t.flags.IsFlagged(from):
				return tainted(CauseFlaggedAccount)
			}

			if _, seen := visited[from]; seen {
				if onPath(visited, node, from) {
					return tainted(CauseCycle)
				}
				continue
			}

			if t.nodeCap > 0 && len(visited) >= t.nodeCap {
				return Verdict{
					Tainted: true,
					Cause:   CauseNodeCap,
					Path:    pathTo(visited, node),
					Visited: len(visited),
				}
			}
			visited[from] = visit{parent: node, depth: depth + 1}
			queue = append(queue, from)
		}
	}

	return Verdict{Visited: len(visited)}
}

func (t *Tracer) isExchange(account string) bool {
	return t.exchanges != nil && t.exchanges.Contains(account)
}

// pathTo returns the accounts from the trace root down to node.
func pathTo(visited map[string]visit, node string) []string {
	var rev []string
	for cur := node; ; {
		rev = append(rev, cur)
		v := visited[cur]
		if v.depth == 0 {
			break
		}
		cur = v.parent
	}
	path := make([]string, len(rev))
	for i, a := range rev {
		path[len(rev)-1-i] = a
	}
	return path
}

// onPath reports whether target is node itself or one of its ancestors.
func onPath(visited map[string]visit, node, target string) bool {
	for cur := node; ; {
		if cur == target {
			return true
		}
		v := visited[cur]
		if v.depth == 0 {
			return false
		}
		cur = v.parent
	}
}
