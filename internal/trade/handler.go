package trade

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cryptosim/cryptosim/internal/ledger"
	"github.com/cryptosim/cryptosim/internal/market"
	"github.com/cryptosim/cryptosim/internal/notification"
)

// Handler exposes trade endpoints.
type Handler struct {
	service *Service
	prices  market.PriceSource
}

// NewHandler constructs a trade handler. prices is consulted only when a
// request does not carry its own price.
func NewHandler(service *Service, prices market.PriceSource) *Handler {
	return &Handler{service: service, prices: prices}
}

type buyRequest struct {
	USDAmount decimal.Decimal     `json:"usd_amount"`
	Price     decimal.NullDecimal `json:"price"`
}

type sellRequest struct {
	BTCAmount decimal.Decimal     `json:"btc_amount"`
	Price     decimal.NullDecimal `json:"price"`
}

type tradeResponse struct {
	Portfolio    ledger.StoredPortfolio     `json:"portfolio"`
	Notification *notification.Notification `json:"notification"`
}

// Buy processes a USD to BTC trade.
func (h *Handler) Buy(c *fiber.Ctx) error {
	var req buyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	price := h.resolvePrice(c, req.Price)

	p, notice, err := h.service.Buy(c.UserContext(), req.USDAmount, price)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(tradeResponse{Portfolio: ledger.ToStored(p), Notification: notice})
}

// Sell processes a BTC to USD trade.
func (h *Handler) Sell(c *fiber.Ctx) error {
	var req sellRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	price := h.resolvePrice(c, req.Price)

	p, notice, err := h.service.Sell(c.UserContext(), req.BTCAmount, price)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(tradeResponse{Portfolio: ledger.ToStored(p), Notification: notice})
}

// Transactions lists the trade history, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	stored := ledger.ToStored(ledger.Portfolio{Transactions: h.service.History(limit)})
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transactions": stored.Transactions,
	})
}

// resolvePrice returns the request price, falling back to the price source.
// An unavailable price is passed through as zero so the engine rejects it.
func (h *Handler) resolvePrice(c *fiber.Ctx, requested decimal.NullDecimal) decimal.Decimal {
	if requested.Valid {
		return requested.Decimal
	}
	if h.prices == nil {
		return decimal.Zero
	}
	price, err := h.prices.CurrentPrice(c.UserContext())
	if err != nil {
		return decimal.Zero
	}
	return price
}

func mapError(err error) error {
	var rej *ledger.RejectError
	switch {
	case errors.As(err, &rej):
		return fiber.NewError(http.StatusUnprocessableEntity, rej.Key)
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
