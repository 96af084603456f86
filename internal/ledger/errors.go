package ledger

import "errors"

var (
	// ErrInvalidAmount occurs when an operation amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransferLimitExceeded indicates a single transfer above the per-transfer ceiling.
	ErrTransferLimitExceeded = errors.New("per-transfer limit exceeded")

	// ErrDailyLimitExceeded indicates the sender's cumulative transfer-out total for
	// the current UTC day would exceed the daily ceiling.
	ErrDailyLimitExceeded = errors.New("daily transfer limit exceeded")

	// ErrRateLimitExceeded indicates too many transfer attempts from one account
	// within the sliding rate window.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrSameAccountTransfer indicates source and destination are the same account.
	// Self-transfers are rejected rather than settled as a no-op.
	ErrSameAccountTransfer = errors.New("cannot transfer to the same account")
)
