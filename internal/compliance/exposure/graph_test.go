package exposure

import (
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/purity/internal/core/domain"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func transfer(id, from, to string, origin domain.Origin, at time.Time) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:        id,
		Amount:    314159,
		Origin:    origin,
		Timestamp: at,
		Sender:    from,
		Recipient: to,
	}
}

func TestGraph_AddDeduplicates(t *testing.T) {
	g := NewGraph(0, 0)
	tx := transfer("t1", "a", "b", domain.OriginP2P, base)

	if !g.Add(tx) {
		t.Fatal("expected first add to insert")
	}
	if g.Add(tx) {
		t.Error("expected duplicate add to be ignored")
	}
	if g.Len() != 1 {
		t.Errorf("expected 1 edge, got %d", g.Len())
	}
	if in := g.Incoming("b"); len(in) != 1 || in[0].From != "a" {
		t.Errorf("unexpected incoming edges: %+v", in)
	}
}

func TestGraph_MaxEdgesDropsOldest(t *testing.T) {
	g := NewGraph(3, 0)
	for i := 0; i < 5; i++ {
		g.Add(transfer(fmt.Sprintf("t%d", i), fmt.Sprintf("s%d", i), "sink", domain.OriginP2P, base))
	}

	if g.Len() != 3 {
		t.Fatalf("expected 3 edges, got %d", g.Len())
	}
	in := g.Incoming("sink")
	if len(in) != 3 || in[0].TxID != "t2" {
		t.Errorf("expected oldest edges evicted, got %+v", in)
	}
	// Evicted ids can be re-added.
	if !g.Add(transfer("t0", "s0", "sink", domain.OriginP2P, base)) {
		t.Error("expected evicted id to be insertable again")
	}
}

func TestGraph_EvictByAge(t *testing.T) {
	g := NewGraph(0, time.Hour)
	g.Add(transfer("new", "a", "b", domain.OriginP2P, base.Add(50*time.Minute)))
	g.Add(transfer("old", "c", "b", domain.OriginP2P, base))
	g.Add(transfer("older", "d", "e", domain.OriginP2P, base.Add(-time.Hour)))

	removed := g.Evict(base.Add(80 * time.Minute))
	if removed != 2 {
		t.Fatalf("expected 2 evicted, got %d", removed)
	}
	if g.Len() != 1 {
		t.Errorf("expected 1 edge left, got %d", g.Len())
	}
	if len(g.Incoming("e")) != 0 {
		t.Error("expected e to have no incoming edges")
	}
	if in := g.Incoming("b"); len(in) != 1 || in[0].TxID != "new" {
		t.Errorf("unexpected incoming for b: %+v", in)
	}
}

func TestGraph_Stats(t *testing.T) {
	g := NewGraph(2, 0)
	g.Add(transfer("t1", "a", "b", domain.OriginP2P, base))
	g.Add(transfer("t2", "a", "c", domain.OriginP2P, base.Add(time.Minute)))
	g.Add(transfer("t3", "c", "b", domain.OriginP2P, base.Add(2*time.Minute)))

	// t1 evicted by the edge bound.
	if st := g.Stats("a"); st.Out != 1 || st.In != 0 {
		t.Errorf("unexpected stats for a: %+v", st)
	}
	st := g.Stats("b")
	if st.In != 1 {
		t.Errorf("expected 1 incoming for b, got %d", st.In)
	}
	if !st.LastSeen.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("unexpected last seen %v", st.LastSeen)
	}
}
