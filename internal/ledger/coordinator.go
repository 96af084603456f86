package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mbongo-ledger/mbongo/internal/idempotency"
	"github.com/mbongo-ledger/mbongo/internal/notification"
	"github.com/mbongo-ledger/mbongo/internal/ratelimit"
)

// Limits carries the transfer ceilings enforced by the coordinator.
type Limits struct {
	PerTransferMax int64
	DailyOutMax    int64
}

// Archiver receives settled transactions after the critical section completes.
// Implementations must not block; delivery is best effort.
type Archiver interface {
	Archive(accountID string, tx Transaction)
}

// Coordinator orchestrates deposits, withdrawals and transfers over the
// account store, transaction log, rate limiter and replay cache. All three
// operations are atomic from the caller's perspective.
type Coordinator struct {
	accounts *AccountStore
	log      *TransactionLog
	limiter  *ratelimit.Limiter
	replays  idempotency.Store
	limits   Limits
	notifier notification.Notifier
	archiver Archiver
	group    singleflight.Group
	now      func() time.Time
}

// NewCoordinator wires a coordinator. notifier and archiver may be nil.
func NewCoordinator(limits Limits, limiter *ratelimit.Limiter, replays idempotency.Store, notifier notification.Notifier, archiver Archiver) *Coordinator {
	return &Coordinator{
		accounts: NewAccountStore(),
		log:      NewTransactionLog(),
		limiter:  limiter,
		replays:  replays,
		limits:   limits,
		notifier: notifier,
		archiver: archiver,
		now:      time.Now,
	}
}

// Deposit credits the account and records a deposit transaction. Deposits are
// not rate limited and carry no ceiling.
func (c *Coordinator) Deposit(ctx context.Context, accountID string, amount int64) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	now := c.now().UTC()
	var entry Transaction
	err := c.accounts.WithLock([]string{accountID}, func(tx *Tx) error {
		tx.Credit(accountID, amount)
		entry = c.log.Append(accountID, Transaction{
			TxID:         uuid.NewString(),
			Kind:         KindDeposit,
			Amount:       amount,
			BalanceAfter: tx.Balance(accountID),
			Timestamp:    now,
		})
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	c.archive(accountID, entry)
	return entry, nil
}

// Withdraw debits the account if funds allow and records a withdrawal.
func (c *Coordinator) Withdraw(ctx context.Context, accountID string, amount int64) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	now := c.now().UTC()
	var entry Transaction
	err := c.accounts.WithLock([]string{accountID}, func(tx *Tx) error {
		if tx.Balance(accountID) < amount {
			return ErrInsufficientFunds
		}
		tx.Debit(accountID, amount)
		entry = c.log.Append(accountID, Transaction{
			TxID:         uuid.NewString(),
			Kind:         KindWithdrawal,
			Amount:       amount,
			BalanceAfter: tx.Balance(accountID),
			Timestamp:    now,
		})
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	c.archive(accountID, entry)
	return entry, nil
}

// TransferInput captures the data needed to move funds between accounts.
type TransferInput struct {
	FromID         string
	ToID           string
	Amount         int64
	IdempotencyKey string
}

// TransferResult describes a settled transfer.
type TransferResult struct {
	TxID        string    `json:"tx_id"`
	FromBalance int64     `json:"from_balance"`
	ToBalance   int64     `json:"to_balance"`
	CompletedAt time.Time `json:"completed_at"`
}

// cachedTransfer is the replay-cache payload: a success result or a named
// error kind, whichever the first settlement produced.
type cachedTransfer struct {
	TransferResult
	ErrKind string `json:"error,omitempty"`
}

// Transfer moves funds between two accounts. When an idempotency key is
// supplied the replay cache is consulted before anything else, and concurrent
// submissions bearing the same key collapse onto a single settlement whose
// result every caller observes.
func (c *Coordinator) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if in.IdempotencyKey == "" {
		return c.settleTransfer(ctx, in)
	}

	v, err, _ := c.group.Do(in.IdempotencyKey, func() (any, error) {
		if payload, ok, lerr := c.replays.Lookup(ctx, in.IdempotencyKey); lerr == nil && ok {
			res, derr := decodeTransfer(payload)
			return res, derr
		}

		res, serr := c.settleTransfer(ctx, in)
		switch {
		case serr == nil:
			c.storeReplay(ctx, in.IdempotencyKey, res, nil)
		case errors.Is(serr, ErrRateLimitExceeded):
			// A retry with the same key must replay the same rejection
			// instead of re-consulting the window.
			c.storeReplay(ctx, in.IdempotencyKey, res, serr)
		}
		return res, serr
	})
	res, _ := v.(TransferResult)
	return res, err
}

func (c *Coordinator) settleTransfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if in.Amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	if in.Amount > c.limits.PerTransferMax {
		return TransferResult{}, ErrTransferLimitExceeded
	}
	if in.FromID == in.ToID {
		return TransferResult{}, ErrSameAccountTransfer
	}

	now := c.now().UTC()
	if !c.limiter.Allow(in.FromID, now) {
		return TransferResult{}, ErrRateLimitExceeded
	}

	txID := uuid.NewString()
	var res TransferResult
	var outLeg, inLeg Transaction
	err := c.accounts.WithLock([]string{in.FromID, in.ToID}, func(tx *Tx) error {
		if tx.Balance(in.FromID) < in.Amount {
			return ErrInsufficientFunds
		}
		if tx.DailyOut(in.FromID, now)+in.Amount > c.limits.DailyOutMax {
			return ErrDailyLimitExceeded
		}

		tx.Debit(in.FromID, in.Amount)
		tx.Credit(in.ToID, in.Amount)
		tx.AddDailyOut(in.FromID, in.Amount)

		outLeg = c.log.Append(in.FromID, Transaction{
			TxID:         txID,
			Kind:         KindTransferOut,
			Amount:       in.Amount,
			Counterparty: in.ToID,
			BalanceAfter: tx.Balance(in.FromID),
			Timestamp:    now,
		})
		inLeg = c.log.Append(in.ToID, Transaction{
			TxID:         txID,
			Kind:         KindTransferIn,
			Amount:       in.Amount,
			Counterparty: in.FromID,
			BalanceAfter: tx.Balance(in.ToID),
			Timestamp:    now,
		})

		res = TransferResult{
			TxID:        txID,
			FromBalance: tx.Balance(in.FromID),
			ToBalance:   tx.Balance(in.ToID),
			CompletedAt: now,
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	c.archive(in.FromID, outLeg)
	c.archive(in.ToID, inLeg)

	if c.notifier != nil {
		_ = c.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferSettled,
			Destination: in.ToID,
			Body:        fmt.Sprintf("You received %d from account %s", in.Amount, in.FromID),
		})
	}

	return res, nil
}

// Balance returns the account's current balance, zero for a never-seen account.
func (c *Coordinator) Balance(ctx context.Context, accountID string) int64 {
	return c.accounts.Balance(accountID)
}

// Summary describes an account's standing against the daily ceiling.
type Summary struct {
	Balance                int64 `json:"balance"`
	DailyTransferTotal     int64 `json:"daily_transfer_total"`
	DailyTransferLimit     int64 `json:"daily_transfer_limit"`
	DailyTransferRemaining int64 `json:"daily_transfer_remaining"`
	TransactionCount       int   `json:"transaction_count"`
}

// Summary reports balance, daily transfer usage and transaction count.
func (c *Coordinator) Summary(ctx context.Context, accountID string) Summary {
	now := c.now().UTC()
	var s Summary
	_ = c.accounts.WithLock([]string{accountID}, func(tx *Tx) error {
		s.Balance = tx.Balance(accountID)
		s.DailyTransferTotal = tx.DailyOut(accountID, now)
		return nil
	})
	s.DailyTransferLimit = c.limits.DailyOutMax
	s.DailyTransferRemaining = c.limits.DailyOutMax - s.DailyTransferTotal
	s.TransactionCount = c.log.Count(accountID)
	return s
}

// History returns a page of the account's settled transactions. Cursor 0 reads
// from the oldest record; more=false means the page reached the end of the log.
func (c *Coordinator) History(ctx context.Context, accountID string, cursor int64, limit int) (records []Transaction, nextCursor int64, more bool) {
	return c.log.Page(accountID, cursor, limit)
}

func (c *Coordinator) archive(accountID string, tx Transaction) {
	if c.archiver != nil {
		c.archiver.Archive(accountID, tx)
	}
}

func (c *Coordinator) storeReplay(ctx context.Context, key string, res TransferResult, opErr error) {
	cached := cachedTransfer{TransferResult: res}
	if opErr != nil {
		cached.ErrKind = errKind(opErr)
	}
	payload, err := json.Marshal(cached)
	if err != nil {
		return
	}
	// Best effort: a failed store only costs a re-settlement guard, not correctness
	// of this settlement.
	_ = c.replays.Store(ctx, key, payload)
}

func decodeTransfer(payload []byte) (TransferResult, error) {
	var cached cachedTransfer
	if err := json.Unmarshal(payload, &cached); err != nil {
		return TransferResult{}, fmt.Errorf("decode cached transfer: %w", err)
	}
	if cached.ErrKind != "" {
		return TransferResult{}, errFromKind(cached.ErrKind)
	}
	return cached.TransferResult, nil
}

const kindRateLimited = "rate_limit_exceeded"

func errKind(err error) string {
	if errors.Is(err, ErrRateLimitExceeded) {
		return kindRateLimited
	}
	return "failed"
}

func errFromKind(kind string) error {
	if kind == kindRateLimited {
		return ErrRateLimitExceeded
	}
	return errors.New(kind)
}
