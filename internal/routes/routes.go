package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mbongo-ledger/mbongo/internal/config"
	"github.com/mbongo-ledger/mbongo/internal/ledger"
	"github.com/mbongo-ledger/mbongo/internal/middleware"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// are nil when the corresponding backend is not configured; the engine itself
// is fully in-memory.
type Deps struct {
	Cfg    config.Config
	Core   *ledger.Coordinator
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	RegisterLedgerRoutes(api, ledger.NewHandler(d.Core))

	return nil
}
