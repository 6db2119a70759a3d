package recon

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

// Budget is a process-wide, date-keyed counter limiting paid vendor calls.
// All workers in the process share one Budget; there is no cross-process
// coordination. The clock is injected so tests can roll the day over.
type Budget struct {
	mu    sync.Mutex
	clock clockwork.Clock
	limit int
	day   string
	used  int
}

func NewBudget(limit int, clock clockwork.Clock) *Budget {
	return &Budget{clock: clock, limit: limit}
}

// TryAcquire consumes one call from today's bucket, rolling the bucket over
// on the first call of a new UTC day.
func (b *Budget) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	if b.used >= b.limit {
		return false
	}
	b.used++
	return true
}

// Remaining reports how many calls are left in today's bucket.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	if n := b.limit - b.used; n > 0 {
		return n
	}
	return 0
}

func (b *Budget) roll() {
	today := b.clock.Now().UTC().Format("2006-01-02")
	if b.day != today {
		b.day = today
		b.used = 0
	}
}
