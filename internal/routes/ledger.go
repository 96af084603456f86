package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mbongo-ledger/mbongo/internal/ledger"
)

// RegisterLedgerRoutes wires the ledger engine endpoints.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler) {
	r.Post("/deposit", h.Deposit)
	r.Post("/withdraw", h.Withdraw)
	r.Post("/transfer", h.Transfer)
	r.Get("/balance/:accountId", h.Balance)
	r.Get("/accounts/:accountId/transactions", h.Transactions)
	r.Get("/accounts/:accountId/summary", h.Summary)
}
