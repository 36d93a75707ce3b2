package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"pulso/internal/circuitbreaker"
	"pulso/internal/health"
	"pulso/internal/model"
)

type wirePayment struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
	RequestedAt   string  `json:"requestedAt"`
}

// Client performs the actual POST /payments call against a processor. Any
// failure marks the processor unhealthy so the router reacts before the next
// scheduled probe, and feeds the per-processor circuit breaker.
type Client struct {
	http     *http.Client
	urls     map[model.ProcessorKind]string
	monitor  *health.Monitor
	breakers map[model.ProcessorKind]*circuitbreaker.Breaker
	timeout  time.Duration
}

func NewClient(primaryURL, secondaryURL string, monitor *health.Monitor, timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        256,
				MaxIdleConnsPerHost: 64,
				IdleConnTimeout:     120 * time.Second,
			},
		},
		urls: map[model.ProcessorKind]string{
			model.ProcessorPrimary:   primaryURL + "/payments",
			model.ProcessorSecondary: secondaryURL + "/payments",
		},
		monitor: monitor,
		breakers: map[model.ProcessorKind]*circuitbreaker.Breaker{
			model.ProcessorPrimary:   circuitbreaker.NewBreaker(10, 10*time.Second, 3),
			model.ProcessorSecondary: circuitbreaker.NewBreaker(10, 10*time.Second, 3),
		},
		timeout: timeout,
	}
}

// Send delivers the item to the given processor. An open breaker fails fast
// without a network call.
func (c *Client) Send(ctx context.Context, item model.QueuedItem, processor model.ProcessorKind) error {
	breaker := c.breakers[processor]
	if !breaker.Allow() {
		return fmt.Errorf("%s breaker open: %w", processor, model.ErrProcessorUnavailable)
	}
	return c.send(ctx, item, processor)
}

// SendDirect bypasses the breaker. Used for the forced final attempt against
// the secondary processor once the retry budget is spent.
func (c *Client) SendDirect(ctx context.Context, item model.QueuedItem, processor model.ProcessorKind) error {
	return c.send(ctx, item, processor)
}

func (c *Client) send(ctx context.Context, item model.QueuedItem, processor model.ProcessorKind) error {
	breaker := c.breakers[processor]

	body, err := sonic.Marshal(wirePayment{
		CorrelationID: item.CorrelationID,
		Amount:        item.Amount,
		RequestedAt:   item.SubmittedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal payment: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.urls[processor], bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.monitor.MarkUnhealthy(processor)
		breaker.Failure()
		return fmt.Errorf("%s send: %w", processor, model.ErrProcessorUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		breaker.Success()
		return nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		// The processor has seen this correlationId before. Terminal, not
		// a processor fault.
		breaker.Success()
		return model.ErrDuplicateSubmission
	default:
		c.monitor.MarkUnhealthy(processor)
		breaker.Failure()
		return fmt.Errorf("%s returned status %d: %w", processor, resp.StatusCode, model.ErrProcessorUnavailable)
	}
}

// BreakerState exposes the breaker for observability and tests.
func (c *Client) BreakerState(processor model.ProcessorKind) circuitbreaker.State {
	return c.breakers[processor].State()
}
