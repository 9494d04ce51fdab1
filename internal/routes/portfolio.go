package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/cryptosim/cryptosim/internal/ledger"
	"github.com/cryptosim/cryptosim/internal/market"
	"github.com/cryptosim/cryptosim/internal/money"
)

// PortfolioHandler serves the dashboard view of a session.
type PortfolioHandler struct {
	store  *ledger.Store
	prices market.PriceSource
}

// NewPortfolioHandler builds a handler over store. prices may be nil.
func NewPortfolioHandler(store *ledger.Store, prices market.PriceSource) *PortfolioHandler {
	return &PortfolioHandler{store: store, prices: prices}
}

// RegisterPortfolioRoutes wires the portfolio and notification endpoints.
func RegisterPortfolioRoutes(r fiber.Router, h *PortfolioHandler) {
	r.Get("/portfolio", h.Portfolio)
	r.Get("/notification", h.Notification)
	r.Delete("/notification", h.ClearNotification)
}

// Portfolio returns balances, history and loan, valued at the current price
// when one is available.
func (h *PortfolioHandler) Portfolio(c *fiber.Ctx) error {
	p := h.store.Snapshot()
	body := fiber.Map{"portfolio": ledger.ToStored(p)}
	if h.prices != nil {
		if price, err := h.prices.CurrentPrice(c.UserContext()); err == nil {
			body["price"] = price
			body["valuation"] = money.RoundCurrency(p.Valuation(price))
		}
	}
	return c.Status(http.StatusOK).JSON(body)
}

// Notification returns the current notification, or 204 when the slot is empty.
func (h *PortfolioHandler) Notification(c *fiber.Ctx) error {
	n := h.store.Notification()
	if n == nil {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.Status(http.StatusOK).JSON(n)
}

// ClearNotification empties the slot. Clearing an empty slot succeeds.
func (h *PortfolioHandler) ClearNotification(c *fiber.Ctx) error {
	h.store.ClearNotification()
	return c.SendStatus(http.StatusNoContent)
}
