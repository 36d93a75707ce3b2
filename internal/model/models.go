package model

import (
	"errors"
	"time"
)

var (
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInvalidCorrelationID = errors.New("invalid correlationId")
	ErrQueueFull            = errors.New("dispatch queue is full")
	ErrProcessorUnavailable = errors.New("processor unavailable")
	ErrDuplicateSubmission  = errors.New("submission already processed")
)

// ProcessorKind carries the wire name used by the downstream services:
// the primary (cheaper) processor is "default", the secondary is "fallback".
type ProcessorKind string

const (
	ProcessorPrimary   ProcessorKind = "default"
	ProcessorSecondary ProcessorKind = "fallback"
)

type PaymentSubmission struct {
	CorrelationID string    `json:"correlationId"`
	Amount        float64   `json:"amount"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// QueuedItem travels through the dispatch queue. Attempt is owned by the
// retry scheduler and only ever moves forward.
type QueuedItem struct {
	CorrelationID string    `json:"correlationId"`
	Amount        float64   `json:"amount"`
	SubmittedAt   time.Time `json:"submittedAt"`
	Attempt       int       `json:"attempt"`
}

func (q QueuedItem) Submission() PaymentSubmission {
	return PaymentSubmission{
		CorrelationID: q.CorrelationID,
		Amount:        q.Amount,
		SubmittedAt:   q.SubmittedAt,
	}
}

// ProcessedRecord is written exactly once per correlationId, by whichever
// worker first gets a successful send through.
type ProcessedRecord struct {
	CorrelationID string        `json:"correlationId"`
	Amount        float64       `json:"amount"`
	SubmittedAt   time.Time     `json:"submittedAt"`
	Processor     ProcessorKind `json:"processor"`
	ProcessedAt   time.Time     `json:"processedAt"`
}

type HealthSnapshot struct {
	ObservedAt      time.Time `json:"observedAt"`
	Failing         bool      `json:"failing"`
	MinResponseTime int       `json:"minResponseTime"`
}

type ProcessorSummary struct {
	TotalRequests int     `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

type SummaryResponse struct {
	Default  ProcessorSummary `json:"default"`
	Fallback ProcessorSummary `json:"fallback"`
}

type QueueStats struct {
	Pending        int   `json:"pending"`
	ActiveWorkers  int   `json:"activeWorkers"`
	AcceptedTotal  int64 `json:"acceptedTotal"`
	ProcessedTotal int64 `json:"processedTotal"`
	DeadLetters    int64 `json:"deadLetters"`
}
