package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// account holds the mutable state owned by AccountStore. Balance and daily
// totals are only touched while mu is held, via a Tx handle.
type account struct {
	mu       sync.Mutex
	balance  int64
	outTotal int64
	day      time.Time // midnight UTC of the day outTotal covers
}

// AccountStore owns account balances and their per-account locks. Accounts are
// created lazily on first reference; a never-seen account has balance zero.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*account
}

// NewAccountStore builds an empty store.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]*account)}
}

func (s *AccountStore) get(id string) *account {
	s.mu.RLock()
	a, ok := s.accounts[id]
	s.mu.RUnlock()
	if ok {
		return a
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return a
	}
	a = &account{}
	s.accounts[id] = a
	return a
}

// Balance returns the current balance, zero for a never-seen account.
func (s *AccountStore) Balance(id string) int64 {
	a := s.get(id)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// WithLock acquires the locks of every account in ids in lexicographic order,
// runs fn with a Tx handle scoped to those accounts, and releases the locks in
// reverse order on every path. Acquiring in a fixed total order is what keeps
// concurrent multi-account operations free of cyclic waits. Duplicate ids are
// collapsed so no lock is ever taken twice by the same call.
func (s *AccountStore) WithLock(ids []string, fn func(tx *Tx) error) error {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)

	held := make([]*account, 0, len(uniq))
	locked := make(map[string]*account, len(uniq))
	for _, id := range uniq {
		a := s.get(id)
		a.mu.Lock()
		held = append(held, a)
		locked[id] = a
	}
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
	}()

	return fn(&Tx{accounts: locked})
}

// Tx is the scoped access handle handed to WithLock callbacks. It is the only
// mutation entry point for account state; using it outside the callback or for
// an account not named in the lock set is a programming error.
type Tx struct {
	accounts map[string]*account
}

func (t *Tx) account(id string) *account {
	a, ok := t.accounts[id]
	if !ok {
		panic(fmt.Sprintf("ledger: account %q accessed without holding its lock", id))
	}
	return a
}

// Balance reads the locked account's balance.
func (t *Tx) Balance(id string) int64 {
	return t.account(id).balance
}

// Credit increases the locked account's balance.
func (t *Tx) Credit(id string, amount int64) {
	t.account(id).balance += amount
}

// Debit decreases the locked account's balance.
func (t *Tx) Debit(id string, amount int64) {
	t.account(id).balance -= amount
}

// DailyOut returns the account's transfer-out total for the UTC day containing
// now, resetting the running total when the day boundary has been crossed.
func (t *Tx) DailyOut(id string, now time.Time) int64 {
	a := t.account(id)
	day := now.UTC().Truncate(24 * time.Hour)
	if !a.day.Equal(day) {
		a.day = day
		a.outTotal = 0
	}
	return a.outTotal
}

// AddDailyOut bumps the account's transfer-out running total.
func (t *Tx) AddDailyOut(id string, amount int64) {
	t.account(id).outTotal += amount
}
