package ledger

import (
	"sync"
	"time"
)

// Kind enumerates transaction record types.
type Kind string

const (
	KindDeposit     Kind = "deposit"
	KindWithdrawal  Kind = "withdrawal"
	KindTransferIn  Kind = "transfer_in"
	KindTransferOut Kind = "transfer_out"
)

// Transaction is an immutable settled record. Both legs of a transfer share one
// TxID; Sequence is per account, gapless, starting at 1.
type Transaction struct {
	TxID         string    `json:"tx_id"`
	Sequence     int64     `json:"sequence"`
	Kind         Kind      `json:"type"`
	Amount       int64     `json:"amount"`
	Counterparty string    `json:"counterparty,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
	Timestamp    time.Time `json:"timestamp"`
}

// TransactionLog keeps an append-only, per-account ordered record of settled
// operations. Appends happen inside the owning account's critical section;
// reads take only the log's own lock and copy, so pages stay stable while new
// records keep arriving.
type TransactionLog struct {
	mu      sync.RWMutex
	entries map[string][]Transaction
}

// NewTransactionLog builds an empty log.
func NewTransactionLog() *TransactionLog {
	return &TransactionLog{entries: make(map[string][]Transaction)}
}

// Append assigns the next sequence number for the account and stores the
// record, returning the stored value.
func (l *TransactionLog) Append(accountID string, tx Transaction) Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx.Sequence = int64(len(l.entries[accountID])) + 1
	l.entries[accountID] = append(l.entries[accountID], tx)
	return tx
}

// Page returns up to limit records with Sequence >= cursor in ascending order.
// Cursor 0 means "from the oldest". The returned cursor resumes just past the
// last record; more=false signals the end of the log at read time.
func (l *TransactionLog) Page(accountID string, cursor int64, limit int) (records []Transaction, nextCursor int64, more bool) {
	if cursor < 1 {
		cursor = 1
	}
	if limit <= 0 {
		limit = 10
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	all := l.entries[accountID]
	// Sequence n lives at index n-1.
	start := cursor - 1
	if start >= int64(len(all)) {
		return nil, 0, false
	}
	end := start + int64(limit)
	if end > int64(len(all)) {
		end = int64(len(all))
	}

	records = make([]Transaction, end-start)
	copy(records, all[start:end])

	if end < int64(len(all)) {
		return records, records[len(records)-1].Sequence + 1, true
	}
	return records, 0, false
}

// Count returns the number of records held for the account.
func (l *TransactionLog) Count(accountID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries[accountID])
}
