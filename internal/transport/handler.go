package transport

import (
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"

	"pulso/internal/intake"
	"pulso/internal/ledger"
	"pulso/internal/model"
)

type paymentRequest struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
}

// Handler maps the HTTP surface onto the intake gate and ledger. The only
// externally visible failure is a validation error; downstream trouble is
// absorbed behind the 202.
type Handler struct {
	gate   *intake.Gate
	ledger *ledger.Ledger
	reset  func()
}

func NewHandler(gate *intake.Gate, l *ledger.Ledger, reset func()) *Handler {
	return &Handler{gate: gate, ledger: l, reset: reset}
}

func (h *Handler) Register(app *fiber.App) {
	app.Post("/payments", h.SubmitPayment)
	app.Get("/payments-summary", h.PaymentsSummary)
	app.Get("/stats", h.Stats)
	app.Post("/purge-payments", h.Purge)
}

func (h *Handler) SubmitPayment(c *fiber.Ctx) error {
	var req paymentRequest
	if err := sonic.Unmarshal(c.Body(), &req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if err := h.gate.Submit(req.CorrelationID, req.Amount); err != nil {
		if errors.Is(err, model.ErrQueueFull) {
			return c.SendStatus(fiber.StatusTooManyRequests)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *Handler) PaymentsSummary(c *fiber.Ctx) error {
	from, okFrom := parseTimestamp(c.Query("from"))
	to, okTo := parseTimestamp(c.Query("to"))
	if !okFrom || !okTo {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	return c.JSON(h.ledger.Summary(from, to))
}

func (h *Handler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.gate.Stats())
}

func (h *Handler) Purge(c *fiber.Ctx) error {
	h.reset()
	return c.SendStatus(fiber.StatusOK)
}

// parseTimestamp accepts RFC3339 with or without sub-second precision. An
// absent parameter leaves the bound open.
func parseTimestamp(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}
