// Package filter provides account membership sets used as taint sources.
package filter

// Filter defines the interface for account membership checks.
type Filter interface {
	// Contains checks if an account is in the set
	Contains(account string) bool

	// Add adds an account to the set
	Add(account string) error

	// AddBatch adds multiple accounts
	AddBatch(accounts []string) error

	// Remove removes an account from the set
	Remove(account string) error

	// Size returns the number of accounts in the set
	Size() int
}

// Directory is an exact account set fronted by a bloom filter so misses on
// large directories skip the map lookup.
type Directory struct {
	bloom *BloomFilter
	exact *MemoryFilter
}

// NewDirectory builds a directory preloaded with accounts.
func NewDirectory(accounts []string) *Directory {
	d := &Directory{
		bloom: NewBloomFilter(),
		exact: NewMemoryFilter(),
	}
	_ = d.AddBatch(accounts)
	return d
}

// Contains checks if an account is in the directory.
func (d *Directory) Contains(account string) bool {
	if !d.bloom.MayContain(account) {
		return false
	}
	return d.exact.Contains(account)
}

// Add adds an account.
func (d *Directory) Add(account string) error {
	d.bloom.Add(account)
	return d.exact.Add(account)
}

// AddBatch adds multiple accounts.
func (d *Directory) AddBatch(accounts []string) error {
	for _, a := range accounts {
		d.bloom.Add(a)
	}
	return d.exact.AddBatch(accounts)
}

// Remove removes an account. The bloom filter is rebuilt from the exact set
// since bloom bits cannot be cleared individually.
func (d *Directory) Remove(account string) error {
	if err := d.exact.Remove(account); err != nil {
		return err
	}
	d.bloom.Build(d.exact.Accounts())
	return nil
}

// Size returns the number of accounts.
func (d *Directory) Size() int {
	return d.exact.Size()
}
