package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceFilter struct {
	DueFrom  *time.Time
	DueTo    *time.Time
	ClientID *snowflake.ID
}

type PromiseFilter struct {
	ClientID       *snowflake.ID
	InvoiceID      *snowflake.ID
	UnresolvedOnly bool
}

type ActionFilter struct {
	ClientID  *snowflake.ID
	InvoiceID *snowflake.ID
	Limit     int
}

// PromiseResolution is the write applied by the promise tracker.
type PromiseResolution struct {
	Fulfilled  *bool
	PaidAmount *decimal.Decimal
	ResolvedAt *time.Time
}

// Repository is the boundary to the invoice store and the action/promise
// ledger. Implementations return raw driver errors; the service wraps them.
type Repository interface {
	ListOpenInvoices(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter InvoiceFilter) ([]Invoice, error)
	ListPromises(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter PromiseFilter) ([]PaymentPromise, error)
	FindPromiseByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*PaymentPromise, error)
	InsertPromise(ctx context.Context, db *gorm.DB, promise *PaymentPromise) error
	UpdatePromiseResolution(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, resolution PromiseResolution) error

	CountActions(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]ActionCount, error)
	// InsertAction reports false when the idempotency key was already used.
	InsertAction(ctx context.Context, db *gorm.DB, action *CollectionAction) (bool, error)
	FindActionByIdempotencyKey(ctx context.Context, db *gorm.DB, orgID snowflake.ID, key string) (*CollectionAction, error)
	ListActions(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ActionFilter) ([]CollectionAction, error)
}
