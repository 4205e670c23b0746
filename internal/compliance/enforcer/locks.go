package enforcer

import (
	"hash/fnv"
	"slices"
	"sync"
)

const defaultStripes = 256

// stripedLocks maps accounts onto a fixed set of mutexes. Two transactions
// touching the same account serialise; unrelated accounts mostly do not.
type stripedLocks struct {
	stripes []sync.Mutex
}

func newStripedLocks(n int) *stripedLocks {
	if n <= 0 {
		n = defaultStripes
	}
	return &stripedLocks{stripes: make([]sync.Mutex, n)}
}

func (s *stripedLocks) index(account string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(account))
	return int(h.Sum32() % uint32(len(s.stripes)))
}

// Lock acquires the stripes for all accounts in ascending stripe order and
// returns the matching unlock.
func (s *stripedLocks) Lock(accounts ...string) func() {
	idx := make([]int, 0, len(accounts))
	for _, a := range accounts {
		idx = append(idx, s.index(a))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		s.stripes[i].Lock()
	}
	return func() {
		for i := len(idx) - 1; i >= 0; i-- {
			s.stripes[idx[i]].Unlock()
		}
	}
}
