package ledger

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Handler exposes the ledger engine over HTTP.
type Handler struct {
	core *Coordinator
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(core *Coordinator) *Handler {
	return &Handler{core: core}
}

type amountRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
}

type transferRequest struct {
	FromAccount string `json:"from_account"`
	ToAccount   string `json:"to_account"`
	Amount      int64  `json:"amount"`
}

// Deposit credits an account.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.core.Deposit(c.UserContext(), req.AccountID, req.Amount)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(entry)
}

// Withdraw debits an account.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.core.Withdraw(c.UserContext(), req.AccountID, req.Amount)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(entry)
}

// Transfer moves funds between two accounts, honoring the Idempotency-Key header.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.core.Transfer(c.UserContext(), TransferInput{
		FromID:         req.FromAccount,
		ToID:           req.ToAccount,
		Amount:         req.Amount,
		IdempotencyKey: c.Get(idempotencyKeyHeader),
	})
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"tx_id":        res.TxID,
		"status":       "success",
		"from_balance": res.FromBalance,
		"to_balance":   res.ToBalance,
		"completed_at": res.CompletedAt,
	})
}

// Balance returns the account's current balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	accountID := c.Params("accountId")
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id": accountID,
		"balance":    h.core.Balance(c.UserContext(), accountID),
	})
}

// Transactions returns a page of the account's history.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	accountID := c.Params("accountId")
	cursor := int64(c.QueryInt("cursor", 0))
	limit := c.QueryInt("limit", 10)

	records, nextCursor, more := h.core.History(c.UserContext(), accountID, cursor, limit)
	if records == nil {
		records = []Transaction{}
	}
	resp := fiber.Map{
		"account_id": accountID,
		"items":      records,
		"has_more":   more,
	}
	if more {
		resp["next_cursor"] = nextCursor
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// Summary returns balance, daily transfer usage and transaction count.
func (h *Handler) Summary(c *fiber.Ctx) error {
	accountID := c.Params("accountId")
	s := h.core.Summary(c.UserContext(), accountID)
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id":               accountID,
		"balance":                  s.Balance,
		"daily_transfer_total":     s.DailyTransferTotal,
		"daily_transfer_limit":     s.DailyTransferLimit,
		"daily_transfer_remaining": s.DailyTransferRemaining,
		"transaction_count":        s.TransactionCount,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrTransferLimitExceeded),
		errors.Is(err, ErrDailyLimitExceeded),
		errors.Is(err, ErrSameAccountTransfer):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
