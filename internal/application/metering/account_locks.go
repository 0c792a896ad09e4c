package metering

import (
	"sync"

	"github.com/google/uuid"
)

// AccountLocks serializes in-process access to usage accounts. Every
// mutating path (increment, reset, plan change) must hold the tenant's
// lock so an increment can never interleave with a rollover for the same
// account. Cross-process writers are handled separately by optimistic
// locking in the repository.
type AccountLocks struct {
	locks sync.Map // uuid.UUID -> *sync.Mutex
}

// NewAccountLocks creates an empty lock registry
func NewAccountLocks() *AccountLocks {
	return &AccountLocks{}
}

// Lock acquires the mutex for a tenant's account and returns the unlock
// function. Locks are created on first use and kept for the life of the
// process; the per-tenant footprint is a single mutex.
func (l *AccountLocks) Lock(tenantID uuid.UUID) func() {
	mu, _ := l.locks.LoadOrStore(tenantID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
