package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type ActionType string

const (
	ActionTypeReminder   ActionType = "reminder"
	ActionTypeCall       ActionType = "call"
	ActionTypeEmail      ActionType = "email"
	ActionTypeEscalation ActionType = "escalation"
	ActionTypeLegal      ActionType = "legal"
)

// StageActionTypes lists the action types a configured stage may carry.
// Recorded actions are free-form and are not checked against this list.
var StageActionTypes = []ActionType{
	ActionTypeReminder,
	ActionTypeCall,
	ActionTypeEmail,
	ActionTypeEscalation,
	ActionTypeLegal,
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Rank orders priorities for sorting: critical=0 … low=3.
// Unknown values sort after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

func (p Priority) Valid() bool {
	return p.Rank() < 4
}

func ParsePriority(raw string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	return p, p.Valid()
}

// StageDefinition is one row of the escalation rule table.
type StageDefinition struct {
	ID              string     `mapstructure:"id" json:"id" yaml:"id"`
	Name            string     `mapstructure:"name" json:"name" yaml:"name"`
	OffsetDays      int        `mapstructure:"offsetDays" json:"offset_days" yaml:"offsetDays"`
	ActionType      ActionType `mapstructure:"actionType" json:"action_type" yaml:"actionType"`
	Priority        Priority   `mapstructure:"priority" json:"priority" yaml:"priority"`
	MessageTemplate string     `mapstructure:"messageTemplate" json:"message_template" yaml:"messageTemplate"`
	AutoExecute     bool       `mapstructure:"autoExecute" json:"auto_execute" yaml:"autoExecute"`
}

// WorkflowConfig is loaded wholesale and treated as an immutable value for
// the duration of one computation.
type WorkflowConfig struct {
	Stages                  []StageDefinition `mapstructure:"stages" json:"stages"`
	GraceDays               int               `mapstructure:"graceDays" json:"grace_days"`
	ReminderFrequencyDays   int               `mapstructure:"reminderFrequencyDays" json:"reminder_frequency_days"`
	AutoEscalate            bool              `mapstructure:"autoEscalate" json:"auto_escalate"`
	NotifySupervisor        bool              `mapstructure:"notifySupervisor" json:"notify_supervisor"`
	CriticalAmountThreshold decimal.Decimal   `mapstructure:"criticalAmountThreshold" json:"critical_amount_threshold"`
}

const (
	InvoiceStatusOpen          = "open"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusCancelled     = "cancelled"
)

// OpenInvoiceStatuses are the invoice states the engine works on.
var OpenInvoiceStatuses = []string{InvoiceStatusOpen, InvoiceStatusPartiallyPaid}

// Invoice is owned by the billing ledger and never mutated here.
type Invoice struct {
	ID            snowflake.ID
	OrgID         snowflake.ID
	ClientID      snowflake.ID
	ClientName    string
	InvoiceNumber string
	Amount        decimal.Decimal
	DueDate       time.Time
	Status        string
}

type PromiseState string

const (
	PromiseStatePending   PromiseState = "pending"
	PromiseStateFulfilled PromiseState = "fulfilled"
	PromiseStateBroken    PromiseState = "broken"
	PromiseStatePartial   PromiseState = "partial"
)

func ParsePromiseState(raw string) (PromiseState, bool) {
	s := PromiseState(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case PromiseStatePending, PromiseStateFulfilled, PromiseStateBroken, PromiseStatePartial:
		return s, true
	}
	return "", false
}

// PaymentPromise is a client's commitment to pay. Fulfilled is tri-state:
// nil means not yet determined, false means explicitly failed.
type PaymentPromise struct {
	ID           snowflake.ID     `json:"id"`
	OrgID        snowflake.ID     `json:"org_id"`
	ClientID     snowflake.ID     `json:"client_id"`
	InvoiceID    *snowflake.ID    `json:"invoice_id,omitempty"`
	Amount       decimal.Decimal  `json:"amount"`
	PromisedDate time.Time        `json:"promised_date"`
	ContactName  string           `json:"contact_name,omitempty"`
	ContactPhone string           `json:"contact_phone,omitempty"`
	Note         string           `json:"note,omitempty"`
	Fulfilled    *bool            `json:"fulfilled"`
	PaidAmount   *decimal.Decimal `json:"paid_amount,omitempty"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	State        PromiseState     `json:"state,omitempty"`
}

// Unresolved reports whether no fulfilment decision has been recorded yet.
func (p PaymentPromise) Unresolved() bool {
	return p.Fulfilled == nil
}

// CollectionAction is an append-only ledger entry.
type CollectionAction struct {
	ID             snowflake.ID  `json:"id"`
	OrgID          snowflake.ID  `json:"org_id"`
	ClientID       snowflake.ID  `json:"client_id"`
	InvoiceID      *snowflake.ID `json:"invoice_id,omitempty"`
	ActionType     string        `json:"action_type"`
	Description    string        `json:"description"`
	Outcome        string        `json:"outcome,omitempty"`
	ContactName    string        `json:"contact_name,omitempty"`
	ContactPhone   string        `json:"contact_phone,omitempty"`
	NextActionDate *time.Time    `json:"next_action_date,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ActionCount is the ledger's per-key action aggregate. InvoiceID is nil
// for client-level actions.
type ActionCount struct {
	ClientID  snowflake.ID
	InvoiceID *snowflake.ID
	Count     int
}

// WorkflowInstance is derived on every read and never persisted.
type WorkflowInstance struct {
	InvoiceID        snowflake.ID    `json:"invoice_id"`
	ClientID         snowflake.ID    `json:"client_id"`
	ClientName       string          `json:"client_name"`
	InvoiceNumber    string          `json:"invoice_number"`
	Amount           decimal.Decimal `json:"amount"`
	DueDate          time.Time       `json:"due_date"`
	DaysOverdue      int             `json:"days_overdue"`
	CurrentStage     string          `json:"current_stage"`
	CurrentStageID   string          `json:"current_stage_id,omitempty"`
	StagePriority    Priority        `json:"stage_priority,omitempty"`
	NextStageID      string          `json:"next_stage_id,omitempty"`
	NextActionType   ActionType      `json:"next_action_type"`
	NextActionDate   time.Time       `json:"next_action_date"`
	AutoExecute      bool            `json:"auto_execute"`
	InGracePeriod    bool            `json:"in_grace_period"`
	Message          string          `json:"message,omitempty"`
	HistoryCount     int             `json:"history_count"`
	HasActivePromise bool            `json:"has_active_promise"`
	Priority         Priority        `json:"priority"`
}

type Metrics struct {
	TotalWorkflows    int             `json:"total_workflows"`
	CriticalOrHigh    int             `json:"critical_or_high"`
	PendingPromises   int             `json:"pending_promises"`
	BrokenPromises    int             `json:"broken_promises"`
	PartialPromises   int             `json:"partial_promises"`
	FulfilledPromises int             `json:"fulfilled_promises"`
	AmountAtRisk      decimal.Decimal `json:"amount_at_risk"`
	ActionsDueToday   int             `json:"actions_due_today"`
}
