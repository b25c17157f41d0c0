package core

import (
	"sync"

	"github.com/soyeahso/leechcore/internal/errs"
)

// DefaultIDPoolSize bounds the IDs handed out by GetID.
const DefaultIDPoolSize = 1 << 16

// IDPool hands out small positive integers unique among live holders.
// Freed IDs are reused, lowest first.
type IDPool struct {
	mu   sync.Mutex
	used map[int]bool
	next int
	free []int
	max  int
}

// NewIDPool creates a pool of IDs in [1, size].
func NewIDPool(size int) *IDPool {
	if size <= 0 {
		size = DefaultIDPoolSize
	}
	return &IDPool{used: make(map[int]bool), next: 1, max: size}
}

// Get reserves an ID.
func (p *IDPool) Get() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		lowest := 0
		for i := 1; i < n; i++ {
			if p.free[i] < p.free[lowest] {
				lowest = i
			}
		}
		id := p.free[lowest]
		p.free[lowest] = p.free[n-1]
		p.free = p.free[:n-1]
		p.used[id] = true
		return id, nil
	}
	if p.next > p.max {
		return 0, errs.New(errs.CodeIDPoolExhausted, "ID pool exhausted", errs.Field("size", p.max))
	}
	id := p.next
	p.next++
	p.used[id] = true
	return id, nil
}

// Free returns id to the pool.
func (p *IDPool) Free(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.used[id] {
		return errs.New(errs.CodeIDNotReserved, "ID was not reserved", errs.Field("id", id))
	}
	delete(p.used, id)
	p.free = append(p.free, id)
	return nil
}

// InUse returns the number of reserved IDs.
func (p *IDPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.used)
}
