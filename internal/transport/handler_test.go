package transport

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"

	"pulso/internal/intake"
	"pulso/internal/ledger"
	"pulso/internal/model"
	"pulso/internal/queue"
)

type noopPool struct{}

func (noopPool) ActiveWorkers() int { return 0 }
func (noopPool) DeadLetters() int64 { return 0 }

func newTestApp(capacity int) (*fiber.App, *ledger.Ledger, *intake.Gate) {
	q := queue.NewDispatchQueue(capacity)
	l := ledger.NewLedger()
	g := intake.NewGate(q, l, noopPool{})

	app := fiber.New(fiber.Config{
		JSONEncoder: sonic.Marshal,
		JSONDecoder: sonic.Unmarshal,
	})
	NewHandler(g, l, func() {
		q.Reset()
		l.Reset()
		g.Reset()
	}).Register(app)

	return app, l, g
}

func postPayment(app *fiber.App, body string) (int, error) {
	req := httptest.NewRequest("POST", "/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

func TestSubmitPaymentAccepted(t *testing.T) {
	app, _, g := newTestApp(10)

	status, err := postPayment(app, `{"correlationId":"4a7901b8-7d0d-4e1c-ba32-f397b339fc6d","amount":19.90}`)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if status != fiber.StatusAccepted {
		t.Errorf("Expected 202, got %d", status)
	}
	if g.AcceptedTotal() != 1 {
		t.Errorf("Expected acceptedTotal 1, got %d", g.AcceptedTotal())
	}
}

func TestSubmitPaymentRejectsBadInput(t *testing.T) {
	app, _, g := newTestApp(10)

	cases := []struct {
		name string
		body string
	}{
		{"zero amount", `{"correlationId":"4a7901b8-7d0d-4e1c-ba32-f397b339fc6d","amount":0}`},
		{"negative amount", `{"correlationId":"4a7901b8-7d0d-4e1c-ba32-f397b339fc6d","amount":-5}`},
		{"bad uuid", `{"correlationId":"nope","amount":10}`},
		{"broken json", `{"correlationId":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, err := postPayment(app, tc.body)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			if status != fiber.StatusBadRequest {
				t.Errorf("Expected 400, got %d", status)
			}
		})
	}

	if g.AcceptedTotal() != 0 {
		t.Errorf("Rejected submissions were counted: %d", g.AcceptedTotal())
	}
}

func TestSubmitPaymentQueueFull(t *testing.T) {
	app, _, _ := newTestApp(1)

	postPayment(app, `{"correlationId":"4a7901b8-7d0d-4e1c-ba32-f397b339fc6d","amount":1}`)
	status, _ := postPayment(app, `{"correlationId":"5b7901b8-7d0d-4e1c-ba32-f397b339fc6d","amount":1}`)

	if status != fiber.StatusTooManyRequests {
		t.Errorf("Expected 429 on full queue, got %d", status)
	}
}

func TestPaymentsSummary(t *testing.T) {
	app, l, _ := newTestApp(10)

	now := time.Now().UTC()
	l.Record(model.ProcessedRecord{
		CorrelationID: "a",
		Amount:        19.90,
		SubmittedAt:   now,
		Processor:     model.ProcessorPrimary,
		ProcessedAt:   now,
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/payments-summary", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var summary model.SummaryResponse
	if err := sonic.Unmarshal(body, &summary); err != nil {
		t.Fatalf("Bad summary body: %v", err)
	}
	if summary.Default.TotalRequests != 1 || summary.Default.TotalAmount != 19.90 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestPaymentsSummaryWindow(t *testing.T) {
	app, l, _ := newTestApp(10)

	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	l.Record(model.ProcessedRecord{CorrelationID: "in", Amount: 1, SubmittedAt: base, Processor: model.ProcessorPrimary})
	l.Record(model.ProcessedRecord{CorrelationID: "out", Amount: 1, SubmittedAt: base.Add(2 * time.Hour), Processor: model.ProcessorPrimary})

	url := "/payments-summary?from=2025-07-01T11:00:00Z&to=2025-07-01T13:00:00Z"
	resp, err := app.Test(httptest.NewRequest("GET", url, nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	body, _ := io.ReadAll(resp.Body)
	var summary model.SummaryResponse
	sonic.Unmarshal(body, &summary)
	if summary.Default.TotalRequests != 1 {
		t.Errorf("Window filter leaked records: %+v", summary)
	}
}

func TestPaymentsSummaryBadTimestamp(t *testing.T) {
	app, _, _ := newTestApp(10)

	resp, err := app.Test(httptest.NewRequest("GET", "/payments-summary?from=yesterday", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400 for bad timestamp, got %d", resp.StatusCode)
	}
}

func TestPurgeResetsState(t *testing.T) {
	app, l, g := newTestApp(10)

	postPayment(app, `{"correlationId":"4a7901b8-7d0d-4e1c-ba32-f397b339fc6d","amount":1}`)
	l.Record(model.ProcessedRecord{CorrelationID: "x", Amount: 1, Processor: model.ProcessorPrimary})

	resp, err := app.Test(httptest.NewRequest("POST", "/purge-payments", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	if l.Len() != 0 || g.AcceptedTotal() != 0 {
		t.Error("Purge left state behind")
	}
}

func TestStatsEndpoint(t *testing.T) {
	app, _, _ := newTestApp(10)

	postPayment(app, `{"correlationId":"4a7901b8-7d0d-4e1c-ba32-f397b339fc6d","amount":1}`)

	resp, err := app.Test(httptest.NewRequest("GET", "/stats", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	body, _ := io.ReadAll(resp.Body)
	var stats model.QueueStats
	if err := sonic.Unmarshal(body, &stats); err != nil {
		t.Fatalf("Bad stats body: %v", err)
	}
	if stats.Pending != 1 || stats.AcceptedTotal != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}
