package ledger

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAccountStore_LazyCreation(t *testing.T) {
	s := NewAccountStore()
	if got := s.Balance("never-seen"); got != 0 {
		t.Fatalf("expected zero balance for fresh account, got %d", got)
	}
}

func TestAccountStore_MutationThroughTx(t *testing.T) {
	s := NewAccountStore()
	err := s.WithLock([]string{"alice"}, func(tx *Tx) error {
		tx.Credit("alice", 500)
		tx.Debit("alice", 200)
		return nil
	})
	if err != nil {
		t.Fatalf("with lock: %v", err)
	}
	if got := s.Balance("alice"); got != 300 {
		t.Fatalf("expected balance 300, got %d", got)
	}
}

func TestAccountStore_ReleasesOnError(t *testing.T) {
	s := NewAccountStore()
	wantErr := ErrInsufficientFunds
	if err := s.WithLock([]string{"a", "b"}, func(tx *Tx) error { return wantErr }); err != wantErr {
		t.Fatalf("expected callback error, got %v", err)
	}
	// A second acquisition hangs forever if the first leaked a lock.
	if err := s.WithLock([]string{"a", "b"}, func(tx *Tx) error { return nil }); err != nil {
		t.Fatalf("relock after error: %v", err)
	}
}

func TestAccountStore_OppositeOrderPairsComplete(t *testing.T) {
	s := NewAccountStore()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		ids := []string{"a", "b"}
		if i == 1 {
			ids = []string{"b", "a"}
		}
		wg.Add(1)
		go func(ids []string) {
			defer wg.Done()
			for j := 0; j < 1_000; j++ {
				_ = s.WithLock(ids, func(tx *Tx) error {
					tx.Credit(ids[0], 1)
					tx.Debit(ids[1], 1)
					return nil
				})
			}
		}(ids)
	}
	wg.Wait()

	if total := s.Balance("a") + s.Balance("b"); total != 0 {
		t.Fatalf("expected opposing mutations to cancel out, total=%d", total)
	}
}

func TestAccountStore_DuplicateIDsCollapse(t *testing.T) {
	s := NewAccountStore()
	// Would self-deadlock if the same lock were taken twice.
	err := s.WithLock([]string{"self", "self"}, func(tx *Tx) error {
		tx.Credit("self", 10)
		return nil
	})
	if err != nil {
		t.Fatalf("with duplicate ids: %v", err)
	}
	if got := s.Balance("self"); got != 10 {
		t.Fatalf("expected balance 10, got %d", got)
	}
}

func TestTx_PanicsOnUnlockedAccount(t *testing.T) {
	s := NewAccountStore()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic for account outside the lock set")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "without holding its lock") {
			t.Fatalf("unexpected panic value: %v", r)
		}
	}()
	_ = s.WithLock([]string{"a"}, func(tx *Tx) error {
		tx.Credit("b", 1)
		return nil
	})
}

func TestTx_DailyOutResetsAtMidnightUTC(t *testing.T) {
	s := NewAccountStore()
	day1 := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 11, 0, 30, 0, 0, time.UTC)

	err := s.WithLock([]string{"a"}, func(tx *Tx) error {
		if got := tx.DailyOut("a", day1); got != 0 {
			t.Fatalf("expected fresh daily total 0, got %d", got)
		}
		tx.AddDailyOut("a", 7_000)
		if got := tx.DailyOut("a", day1); got != 7_000 {
			t.Fatalf("expected daily total 7000, got %d", got)
		}
		if got := tx.DailyOut("a", day2); got != 0 {
			t.Fatalf("expected reset after day boundary, got %d", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("with lock: %v", err)
	}
}
