package loan

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cryptosim/cryptosim/internal/ledger"
	"github.com/cryptosim/cryptosim/internal/notification"
)

// Handler exposes loan endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a loan handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type takeRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	PeriodDays int             `json:"period_days"`
}

type loanResponse struct {
	Portfolio    ledger.StoredPortfolio     `json:"portfolio"`
	Notification *notification.Notification `json:"notification"`
}

// Take issues a new loan.
func (h *Handler) Take(c *fiber.Ctx) error {
	var req takeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	p, notice, err := h.service.Take(c.UserContext(), req.Amount, req.PeriodDays)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(loanResponse{Portfolio: ledger.ToStored(p), Notification: notice})
}

// Repay settles the active loan.
func (h *Handler) Repay(c *fiber.Ctx) error {
	p, notice, err := h.service.Repay(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(loanResponse{Portfolio: ledger.ToStored(p), Notification: notice})
}

// Quote returns the current cost of the active loan.
func (h *Handler) Quote(c *fiber.Ctx) error {
	q, err := h.service.Quote()
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"principal":         q.Principal,
		"interest_rate":     q.InterestRate,
		"loan_date":         q.LoanDate.UTC().Format(time.RFC3339Nano),
		"due_date":          q.DueDate.UTC().Format(time.RFC3339Nano),
		"period_days":       q.PeriodDays,
		"accrued_interest":  q.AccruedInterest,
		"repay_now":         q.RepayNow,
		"due_at_term":       q.DueAtTerm,
		"penalty":           q.Penalty,
		"remaining_seconds": int64(q.Remaining / time.Second),
		"overdue":           q.Overdue,
		"affordable":        q.Affordable,
	})
}

// Preview prices a prospective loan from the amount and period_days query parameters.
func (h *Handler) Preview(c *fiber.Ctx) error {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	pv, err := h.service.Preview(amount, c.QueryInt("period_days", 7))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"amount":          pv.Amount,
		"period_days":     pv.PeriodDays,
		"interest":        pv.Interest,
		"total_repayment": pv.TotalRepayment,
		"collateral":      pv.Collateral,
		"max_loan":        pv.MaxLoan,
		"exceeds_max":     pv.ExceedsMax,
	})
}

func mapError(err error) error {
	var rej *ledger.RejectError
	switch {
	case errors.Is(err, ErrNoLoan):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.As(err, &rej):
		return fiber.NewError(http.StatusUnprocessableEntity, rej.Key)
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
