package models

import (
	"time"

	"payment-router/internal/constants"
)

type PaymentRequest struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
}

// PaymentProcessorRequest is the wire form sent to a downstream processor.
type PaymentProcessorRequest struct {
	CorrelationID string    `json:"correlationId"`
	Amount        float64   `json:"amount"`
	RequestedAt   time.Time `json:"requestedAt"`
}

type PaymentProcessorResponse struct {
	Message string `json:"message"`
}

type Settlement struct {
	CorrelationID string                `json:"correlationId"`
	Processor     constants.PaymentMode `json:"processor"`
	Amount        float64               `json:"amount"`
	SettledAt     int64                 `json:"settledAt"`
}

type ProcessorSummary struct {
	TotalRequests int64   `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

type PaymentSummaryResponse struct {
	Default  ProcessorSummary `json:"default"`
	Fallback ProcessorSummary `json:"fallback"`
}

// HealthResponse is the body a processor returns from its service-health endpoint.
type HealthResponse struct {
	Failing         bool `json:"failing"`
	MinResponseTime int  `json:"minResponseTime"`
}

// ProcessorsHealth is the tracker's view of both processors at one instant.
type ProcessorsHealth struct {
	Default  bool `json:"default"`
	Fallback bool `json:"fallback"`
}

type QueuedPayment struct {
	ID            string        `json:"id"`
	CorrelationID string        `json:"correlationId"`
	Amount        float64       `json:"amount"`
	Attempts      int           `json:"attempts"`
	MaxRetries    int           `json:"maxRetries"`
	LastAttemptAt time.Time     `json:"lastAttemptAt"`
	CurrentDelay  time.Duration `json:"currentDelay"`
	Registered    bool          `json:"registered"`
	EnqueuedAt    time.Time     `json:"enqueuedAt"`

	// Processor that accepted the payment, set once the downstream call
	// succeeded. Kept so a failed ledger write can be retried without
	// re-sending the payment.
	SettledProcessor constants.PaymentMode `json:"-"`
}

type QueueStats struct {
	Size           int   `json:"size"`
	Running        bool  `json:"running"`
	TotalQueued    int64 `json:"totalQueued"`
	TotalProcessed int64 `json:"totalProcessed"`
	TotalFailed    int64 `json:"totalFailed"`
	TotalCycles    int64 `json:"totalCycles"`
}

type BreakerSnapshot struct {
	Open                bool  `json:"open"`
	ConsecutiveFailures int   `json:"consecutiveFailures"`
	LastFailureAt       int64 `json:"lastFailureAt"`
}

type ProcessorStatus struct {
	Healthy bool            `json:"healthy"`
	Circuit BreakerSnapshot `json:"circuit"`
}

type StatusResponse struct {
	Default  ProcessorStatus `json:"default"`
	Fallback ProcessorStatus `json:"fallback"`
	Queue    QueueStats      `json:"queue"`
}

type QueuedResponse struct {
	CorrelationID string `json:"correlationId"`
	QueueID       string `json:"queueId"`
	Status        string `json:"status"`
}
