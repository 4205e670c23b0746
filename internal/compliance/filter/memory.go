package filter

import (
	"strings"
	"sync"
)

// MemoryFilter is an exact, case-insensitive account set.
type MemoryFilter struct {
	accounts map[string]struct{}
	mu       sync.RWMutex
}

// NewMemoryFilter creates an empty set.
func NewMemoryFilter() *MemoryFilter {
	return &MemoryFilter{
		accounts: make(map[string]struct{}),
	}
}

func (f *MemoryFilter) Contains(account string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.accounts[normalize(account)]
	return ok
}

func (f *MemoryFilter) Add(account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[normalize(account)] = struct{}{}
	return nil
}

func (f *MemoryFilter) AddBatch(accounts []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range accounts {
		f.accounts[normalize(a)] = struct{}{}
	}
	return nil
}

func (f *MemoryFilter) Remove(account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, normalize(account))
	return nil
}

func (f *MemoryFilter) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.accounts)
}

// Accounts returns a snapshot of the set.
func (f *MemoryFilter) Accounts() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.accounts))
	for a := range f.accounts {
		out = append(out, a)
	}
	return out
}

func normalize(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
