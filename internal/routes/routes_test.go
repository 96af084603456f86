package routes

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mbongo-ledger/mbongo/internal/config"
	"github.com/mbongo-ledger/mbongo/internal/idempotency"
	"github.com/mbongo-ledger/mbongo/internal/ledger"
	"github.com/mbongo-ledger/mbongo/internal/logging"
	"github.com/mbongo-ledger/mbongo/internal/ratelimit"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()
	core := ledger.NewCoordinator(
		ledger.Limits{PerTransferMax: 10_000, DailyOutMax: 25_000},
		ratelimit.New(10, time.Minute),
		idempotency.NewMemory(24*time.Hour),
		nil,
		nil,
	)

	app := fiber.New()
	deps := Deps{
		Cfg:    config.Config{AppName: "Mbongo", AppEnv: "test"},
		Core:   core,
		Logger: logging.Discard(),
	}
	if err := Setup(app, deps); err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return app
}

func TestHealthzWithoutBackends(t *testing.T) {
	app := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 with no backends configured, got %d", resp.StatusCode)
	}
}

func TestLedgerRoutesRegistered(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/deposit", strings.NewReader(`{"account_id":"a","amount":100}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/balance/a", nil))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
