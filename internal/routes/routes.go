package routes

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cryptosim/cryptosim/internal/config"
	"github.com/cryptosim/cryptosim/internal/loan"
	"github.com/cryptosim/cryptosim/internal/market"
	"github.com/cryptosim/cryptosim/internal/middleware"
	"github.com/cryptosim/cryptosim/internal/simulator"
	"github.com/cryptosim/cryptosim/internal/trade"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	Sim    *simulator.Simulator
	Prices market.PriceSource
	DB     *pgxpool.Pool
	SQL    *sql.DB
	Cache  *redis.Client
	Logger *slog.Logger
	// AccessLog enables fiber's plain-text request line.
	AccessLog bool
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Sim == nil {
		return fmt.Errorf("simulator session is required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.AccessLog {
		// [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Use(middleware.WriteRateLimit(d.Cache, d.Cfg.WriteRateLimit))
	api.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))

	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterPortfolioRoutes(api, NewPortfolioHandler(d.Sim.Store, d.Prices))
	RegisterTradeRoutes(api, trade.NewHandler(d.Sim.Trades, d.Prices))
	RegisterLoanRoutes(api, loan.NewHandler(d.Sim.Loans))

	return nil
}

// RegisterTradeRoutes wires trading endpoints.
func RegisterTradeRoutes(r fiber.Router, h *trade.Handler) {
	r.Post("/trades/buy", h.Buy)
	r.Post("/trades/sell", h.Sell)
	r.Get("/transactions", h.Transactions)
}

// RegisterLoanRoutes wires loan endpoints.
func RegisterLoanRoutes(r fiber.Router, h *loan.Handler) {
	r.Post("/loans", h.Take)
	r.Post("/loans/repay", h.Repay)
	r.Get("/loans/quote", h.Quote)
	r.Get("/loans/preview", h.Preview)
}
