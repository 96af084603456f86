package ledger

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func setupTestApp(t *testing.T) (*fiber.App, *Coordinator) {
	t.Helper()
	core := newTestCoordinator()
	h := NewHandler(core)

	app := fiber.New()
	app.Post("/deposit", h.Deposit)
	app.Post("/withdraw", h.Withdraw)
	app.Post("/transfer", h.Transfer)
	app.Get("/balance/:accountId", h.Balance)
	app.Get("/accounts/:accountId/transactions", h.Transactions)
	app.Get("/accounts/:accountId/summary", h.Summary)
	return app, core
}

func postJSON(t *testing.T, app *fiber.App, path, body string, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test %s: %v", path, err)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode, string(payload)
}

func TestHandlerDepositAndBalance(t *testing.T) {
	app, _ := setupTestApp(t)

	status, body := postJSON(t, app, "/deposit", `{"account_id":"alice","amount":1500}`, nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var entry Transaction
	if err := json.Unmarshal([]byte(body), &entry); err != nil {
		t.Fatalf("decode deposit response: %v", err)
	}
	if entry.Kind != KindDeposit || entry.BalanceAfter != 1500 {
		t.Fatalf("unexpected deposit entry: %+v", entry)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/balance/alice", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("balance request: %v", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		AccountID string `json:"account_id"`
		Balance   int64  `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if decoded.Balance != 1500 {
		t.Fatalf("expected balance 1500, got %d", decoded.Balance)
	}
}

func TestHandlerTransferReplaysUnderIdempotencyKey(t *testing.T) {
	app, core := setupTestApp(t)

	if status, body := postJSON(t, app, "/deposit", `{"account_id":"alice","amount":5000}`, nil); status != fiber.StatusOK {
		t.Fatalf("seed deposit failed: %d %s", status, body)
	}

	headers := map[string]string{idempotencyKeyHeader: "abc123"}
	transfer := `{"from_account":"alice","to_account":"bob","amount":2000}`

	status, first := postJSON(t, app, "/transfer", transfer, headers)
	if status != fiber.StatusOK {
		t.Fatalf("transfer failed: %d %s", status, first)
	}
	status, second := postJSON(t, app, "/transfer", transfer, headers)
	if status != fiber.StatusOK {
		t.Fatalf("replay failed: %d %s", status, second)
	}

	if first != second {
		t.Fatalf("replay body differs:\n%s\n%s", first, second)
	}
	if got := core.Balance(context.Background(), "alice"); got != 3000 {
		t.Fatalf("transfer settled more than once, balance=%d", got)
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	app, _ := setupTestApp(t)

	status, _ := postJSON(t, app, "/withdraw", `{"account_id":"ghost","amount":10}`, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("insufficient funds should map to 400, got %d", status)
	}

	status, _ = postJSON(t, app, "/transfer", `{"from_account":"x","to_account":"x","amount":10}`, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("self transfer should map to 400, got %d", status)
	}

	if status, body := postJSON(t, app, "/deposit", `{"account_id":"x","amount":30000}`, nil); status != fiber.StatusOK {
		t.Fatalf("seed deposit failed: %d %s", status, body)
	}
	for i := 0; i < 10; i++ {
		if status, body := postJSON(t, app, "/transfer", `{"from_account":"x","to_account":"y","amount":100}`, nil); status != fiber.StatusOK {
			t.Fatalf("transfer %d failed: %d %s", i+1, status, body)
		}
	}
	status, _ = postJSON(t, app, "/transfer", `{"from_account":"x","to_account":"y","amount":100}`, nil)
	if status != fiber.StatusTooManyRequests {
		t.Fatalf("rate limit should map to 429, got %d", status)
	}
}

func TestHandlerTransactionsPage(t *testing.T) {
	app, _ := setupTestApp(t)

	for i := 0; i < 5; i++ {
		if status, body := postJSON(t, app, "/deposit", `{"account_id":"alice","amount":100}`, nil); status != fiber.StatusOK {
			t.Fatalf("deposit %d failed: %d %s", i+1, status, body)
		}
	}

	req := httptest.NewRequest(fiber.MethodGet, "/accounts/alice/transactions?limit=2&cursor=0", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("transactions request: %v", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Items      []Transaction `json:"items"`
		NextCursor int64         `json:"next_cursor"`
		HasMore    bool          `json:"has_more"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(decoded.Items) != 2 || decoded.Items[0].Sequence != 1 {
		t.Fatalf("unexpected page: %+v", decoded)
	}
	if !decoded.HasMore || decoded.NextCursor != 3 {
		t.Fatalf("expected next_cursor 3, got %+v", decoded)
	}
}
