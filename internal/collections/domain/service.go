package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ListWorkflowsRequest struct {
	DueFrom  *time.Time
	DueTo    *time.Time
	ClientID string
	Priority string
}

type ListWorkflowsResponse struct {
	Workflows   []WorkflowInstance `json:"workflows"`
	HasData     bool               `json:"has_data"`
	GeneratedAt time.Time          `json:"generated_at"`
}

type MetricsResponse struct {
	Metrics
	GeneratedAt time.Time `json:"generated_at"`
}

type CreatePromiseRequest struct {
	ClientID     string          `json:"client_id"`
	InvoiceID    string          `json:"invoice_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	PromisedDate time.Time       `json:"promised_date"`
	ContactName  string          `json:"contact_name,omitempty"`
	ContactPhone string          `json:"contact_phone,omitempty"`
	Note         string          `json:"note,omitempty"`
}

type ListPromisesRequest struct {
	ClientID  string
	InvoiceID string
	State     string
}

type ListPromisesResponse struct {
	Promises []PaymentPromise `json:"promises"`
	HasData  bool             `json:"has_data"`
}

type RecordActionRequest struct {
	ClientID       string     `json:"client_id"`
	InvoiceID      string     `json:"invoice_id,omitempty"`
	ActionType     string     `json:"action_type"`
	Description    string     `json:"description"`
	Outcome        string     `json:"outcome,omitempty"`
	ContactName    string     `json:"contact_name,omitempty"`
	ContactPhone   string     `json:"contact_phone,omitempty"`
	NextActionDate *time.Time `json:"next_action_date,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
}

type RecordActionResponse struct {
	Action CollectionAction `json:"action"`
	Status string           `json:"status"`
}

type ListActionsRequest struct {
	ClientID  string
	InvoiceID string
	Limit     int
}

type ListActionsResponse struct {
	Actions []CollectionAction `json:"actions"`
	HasData bool               `json:"has_data"`
}

const (
	ActionStatusRecorded  = "recorded"
	ActionStatusDuplicate = "duplicate"
)

type Service interface {
	ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (ListWorkflowsResponse, error)
	GetMetrics(ctx context.Context) (MetricsResponse, error)
	GetConfig(ctx context.Context) WorkflowConfig

	CreatePromise(ctx context.Context, req CreatePromiseRequest) (PaymentPromise, error)
	MarkPromiseFulfilled(ctx context.Context, id string) (PaymentPromise, error)
	MarkPromiseFailed(ctx context.Context, id string) (PaymentPromise, error)
	MarkPromisePartial(ctx context.Context, id string, paidAmount decimal.Decimal) (PaymentPromise, error)
	ListPromises(ctx context.Context, req ListPromisesRequest) (ListPromisesResponse, error)

	RecordAction(ctx context.Context, req RecordActionRequest) (RecordActionResponse, error)
	ListActions(ctx context.Context, req ListActionsRequest) (ListActionsResponse, error)
}
