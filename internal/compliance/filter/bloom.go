package filter

import (
	"hash/fnv"
	"sync"
)

// BloomFilter answers "definitely not present" for accounts.
type BloomFilter struct {
	bits   []uint64
	size   uint64
	hashes int
	empty  bool
	mu     sync.RWMutex
}

// NewBloomFilter sizes the filter for roughly 10k accounts at 1% false positives.
func NewBloomFilter() *BloomFilter {
	return NewBloomFilterWithSize(100000, 7)
}

// NewBloomFilterWithSize creates a filter with size bits and the given hash count.
func NewBloomFilterWithSize(size uint64, hashes int) *BloomFilter {
	return &BloomFilter{
		bits:   make([]uint64, (size+63)/64),
		size:   size,
		hashes: hashes,
		empty:  true,
	}
}

// Build resets the filter to exactly the given accounts.
func (bf *BloomFilter) Build(accounts []string) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	clear(bf.bits)
	bf.empty = true
	for _, a := range accounts {
		bf.addLocked(normalize(a))
	}
}

func (bf *BloomFilter) Add(account string) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.addLocked(normalize(account))
}

func (bf *BloomFilter) addLocked(account string) {
	for i := 0; i < bf.hashes; i++ {
		pos := bf.hash(account, i) % bf.size
		bf.bits[pos/64] |= 1 << (pos % 64)
	}
	bf.empty = false
}

// MayContain returns false only if the account is definitely absent.
func (bf *BloomFilter) MayContain(account string) bool {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	if bf.empty {
		return false
	}
	account = normalize(account)
	for i := 0; i < bf.hashes; i++ {
		pos := bf.hash(account, i) % bf.size
		if bf.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

func (bf *BloomFilter) hash(value string, seed int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(value))
	h.Write([]byte{byte(seed)})
	return h.Sum64()
}
