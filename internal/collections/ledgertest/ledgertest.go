// Package ledgertest opens an in-memory sqlite ledger with the collections
// schema for tests.
package ledgertest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE clients (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE invoices (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL,
		invoice_number TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		due_date DATETIME NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE payment_promises (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL,
		invoice_id BIGINT NULL,
		amount NUMERIC NOT NULL,
		promised_date DATETIME NOT NULL,
		contact_name TEXT NULL,
		contact_phone TEXT NULL,
		note TEXT NULL,
		fulfilled BOOLEAN NULL,
		paid_amount NUMERIC NULL,
		resolved_at DATETIME NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE collection_actions (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL,
		invoice_id BIGINT NULL,
		action_type TEXT NOT NULL,
		description TEXT NOT NULL,
		outcome TEXT NULL,
		contact_name TEXT NULL,
		contact_phone TEXT NULL,
		next_action_date DATETIME NULL,
		idempotency_key TEXT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_collection_actions_idempotency ON collection_actions (org_id, idempotency_key)`,
}

// Open returns a private in-memory ledger named after the test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
	return db
}

func SeedClient(t *testing.T, db *gorm.DB, orgID, clientID snowflake.ID, name string) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO clients (id, org_id, name, created_at) VALUES (?, ?, ?, ?)`,
		clientID, orgID, name, time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
}

type Invoice struct {
	ID       snowflake.ID
	OrgID    snowflake.ID
	ClientID snowflake.ID
	Number   string
	Amount   decimal.Decimal
	DueDate  time.Time
	Status   string
}

func SeedInvoice(t *testing.T, db *gorm.DB, inv Invoice) {
	t.Helper()
	status := inv.Status
	if status == "" {
		status = "open"
	}
	if err := db.Exec(
		`INSERT INTO invoices (id, org_id, client_id, invoice_number, amount, due_date, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.OrgID, inv.ClientID, inv.Number, inv.Amount, inv.DueDate.UTC(), status, time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
}
