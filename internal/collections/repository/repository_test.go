package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/collections/internal/collections/domain"
	"github.com/smallbiznis/collections/internal/collections/ledgertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	orgA    = snowflake.ID(100)
	orgB    = snowflake.ID(200)
	client1 = snowflake.ID(11)
	client2 = snowflake.ID(12)
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func id(v int64) *snowflake.ID {
	out := snowflake.ID(v)
	return &out
}

func TestListOpenInvoicesFiltersAndOrders(t *testing.T) {
	db := ledgertest.Open(t)
	ctx := context.Background()
	r := Provide()

	ledgertest.SeedClient(t, db, orgA, client1, "Acme")
	ledgertest.SeedClient(t, db, orgA, client2, "Globex")
	ledgertest.SeedInvoice(t, db, ledgertest.Invoice{ID: 1, OrgID: orgA, ClientID: client1, Number: "INV-1", Amount: decimal.NewFromInt(1000), DueDate: date(2024, 3, 10)})
	ledgertest.SeedInvoice(t, db, ledgertest.Invoice{ID: 2, OrgID: orgA, ClientID: client2, Number: "INV-2", Amount: decimal.NewFromInt(2000), DueDate: date(2024, 3, 1), Status: domain.InvoiceStatusPartiallyPaid})
	ledgertest.SeedInvoice(t, db, ledgertest.Invoice{ID: 3, OrgID: orgA, ClientID: client1, Number: "INV-3", Amount: decimal.NewFromInt(3000), DueDate: date(2024, 2, 1), Status: domain.InvoiceStatusPaid})
	ledgertest.SeedInvoice(t, db, ledgertest.Invoice{ID: 4, OrgID: orgB, ClientID: client1, Number: "INV-4", Amount: decimal.NewFromInt(4000), DueDate: date(2024, 1, 1)})

	invoices, err := r.ListOpenInvoices(ctx, db, orgA, domain.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, snowflake.ID(2), invoices[0].ID)
	assert.Equal(t, "Globex", invoices[0].ClientName)
	assert.Equal(t, domain.InvoiceStatusPartiallyPaid, invoices[0].Status)
	assert.Equal(t, snowflake.ID(1), invoices[1].ID)
	assert.True(t, decimal.NewFromInt(1000).Equal(invoices[1].Amount))
	assert.True(t, date(2024, 3, 10).Equal(invoices[1].DueDate))

	from := date(2024, 3, 5)
	invoices, err = r.ListOpenInvoices(ctx, db, orgA, domain.InvoiceFilter{DueFrom: &from})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, snowflake.ID(1), invoices[0].ID)

	to := date(2024, 3, 5)
	invoices, err = r.ListOpenInvoices(ctx, db, orgA, domain.InvoiceFilter{DueTo: &to})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, snowflake.ID(2), invoices[0].ID)

	clientID := client1
	invoices, err = r.ListOpenInvoices(ctx, db, orgA, domain.InvoiceFilter{ClientID: &clientID})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "INV-1", invoices[0].InvoiceNumber)
}

func TestListOpenInvoicesMissingClientName(t *testing.T) {
	db := ledgertest.Open(t)
	ledgertest.SeedInvoice(t, db, ledgertest.Invoice{ID: 1, OrgID: orgA, ClientID: client1, Number: "INV-1", Amount: decimal.NewFromInt(10), DueDate: date(2024, 3, 10)})

	invoices, err := Provide().ListOpenInvoices(context.Background(), db, orgA, domain.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Empty(t, invoices[0].ClientName)
}

func TestPromiseInsertFindAndResolve(t *testing.T) {
	db := ledgertest.Open(t)
	ctx := context.Background()
	r := Provide()

	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	promise := &domain.PaymentPromise{
		ID:           500,
		OrgID:        orgA,
		ClientID:     client1,
		InvoiceID:    id(1),
		Amount:       decimal.RequireFromString("1250.50"),
		PromisedDate: date(2024, 3, 15),
		ContactName:  "Jane",
		Note:         "  ",
		CreatedAt:    created,
	}
	require.NoError(t, r.InsertPromise(ctx, db, promise))

	found, err := r.FindPromiseByID(ctx, db, orgA, 500)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, client1, found.ClientID)
	require.NotNil(t, found.InvoiceID)
	assert.Equal(t, snowflake.ID(1), *found.InvoiceID)
	assert.True(t, decimal.RequireFromString("1250.50").Equal(found.Amount))
	assert.True(t, date(2024, 3, 15).Equal(found.PromisedDate))
	assert.Equal(t, "Jane", found.ContactName)
	assert.Empty(t, found.Note)
	assert.Nil(t, found.Fulfilled)
	assert.Nil(t, found.PaidAmount)
	assert.Nil(t, found.ResolvedAt)
	assert.True(t, created.Equal(found.CreatedAt))

	missing, err := r.FindPromiseByID(ctx, db, orgB, 500)
	require.NoError(t, err)
	assert.Nil(t, missing, "promises are tenant scoped")

	fulfilled := false
	paid := decimal.NewFromInt(600)
	resolvedAt := time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.UpdatePromiseResolution(ctx, db, orgA, 500, domain.PromiseResolution{
		Fulfilled:  &fulfilled,
		PaidAmount: &paid,
		ResolvedAt: &resolvedAt,
	}))

	found, err = r.FindPromiseByID(ctx, db, orgA, 500)
	require.NoError(t, err)
	require.NotNil(t, found.Fulfilled)
	assert.False(t, *found.Fulfilled)
	require.NotNil(t, found.PaidAmount)
	assert.True(t, paid.Equal(*found.PaidAmount))
	require.NotNil(t, found.ResolvedAt)
	assert.True(t, resolvedAt.Equal(*found.ResolvedAt))
}

func TestListPromisesFilters(t *testing.T) {
	db := ledgertest.Open(t)
	ctx := context.Background()
	r := Provide()

	done := true
	rows := []domain.PaymentPromise{
		{ID: 1, OrgID: orgA, ClientID: client1, InvoiceID: id(10), Amount: decimal.NewFromInt(1), PromisedDate: date(2024, 3, 3)},
		{ID: 2, OrgID: orgA, ClientID: client1, Amount: decimal.NewFromInt(2), PromisedDate: date(2024, 3, 1)},
		{ID: 3, OrgID: orgA, ClientID: client2, InvoiceID: id(20), Amount: decimal.NewFromInt(3), PromisedDate: date(2024, 3, 2), Fulfilled: &done},
		{ID: 4, OrgID: orgB, ClientID: client1, Amount: decimal.NewFromInt(4), PromisedDate: date(2024, 3, 1)},
	}
	for i := range rows {
		rows[i].CreatedAt = date(2024, 2, 1)
		require.NoError(t, r.InsertPromise(ctx, db, &rows[i]))
	}

	all, err := r.ListPromises(ctx, db, orgA, domain.PromiseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []snowflake.ID{2, 3, 1}, []snowflake.ID{all[0].ID, all[1].ID, all[2].ID})
	assert.Nil(t, all[0].InvoiceID)

	clientID := client1
	byClient, err := r.ListPromises(ctx, db, orgA, domain.PromiseFilter{ClientID: &clientID})
	require.NoError(t, err)
	assert.Len(t, byClient, 2)

	byInvoice, err := r.ListPromises(ctx, db, orgA, domain.PromiseFilter{InvoiceID: id(20)})
	require.NoError(t, err)
	require.Len(t, byInvoice, 1)
	assert.Equal(t, snowflake.ID(3), byInvoice[0].ID)

	unresolved, err := r.ListPromises(ctx, db, orgA, domain.PromiseFilter{UnresolvedOnly: true})
	require.NoError(t, err)
	assert.Len(t, unresolved, 2)
}

func TestInsertActionIdempotency(t *testing.T) {
	db := ledgertest.Open(t)
	ctx := context.Background()
	r := Provide()

	action := &domain.CollectionAction{
		ID:             1,
		OrgID:          orgA,
		ClientID:       client1,
		InvoiceID:      id(10),
		ActionType:     "call",
		Description:    "Called accounts payable",
		IdempotencyKey: "call-1",
		CreatedAt:      date(2024, 3, 1),
	}
	inserted, err := r.InsertAction(ctx, db, action)
	require.NoError(t, err)
	assert.True(t, inserted)

	retry := *action
	retry.ID = 2
	inserted, err = r.InsertAction(ctx, db, &retry)
	require.NoError(t, err)
	assert.False(t, inserted, "same key in the same tenant is a duplicate")

	other := *action
	other.ID = 3
	other.OrgID = orgB
	inserted, err = r.InsertAction(ctx, db, &other)
	require.NoError(t, err)
	assert.True(t, inserted, "keys are tenant scoped")

	for _, actionID := range []snowflake.ID{4, 5} {
		keyless := &domain.CollectionAction{ID: actionID, OrgID: orgA, ClientID: client1, ActionType: "note", Description: "n", CreatedAt: date(2024, 3, 2)}
		inserted, err = r.InsertAction(ctx, db, keyless)
		require.NoError(t, err)
		assert.True(t, inserted, "actions without a key never collide")
	}

	existing, err := r.FindActionByIdempotencyKey(ctx, db, orgA, "call-1")
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, snowflake.ID(1), existing.ID)
	assert.Equal(t, "call-1", existing.IdempotencyKey)

	none, err := r.FindActionByIdempotencyKey(ctx, db, orgA, "nope")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCountAndListActions(t *testing.T) {
	db := ledgertest.Open(t)
	ctx := context.Background()
	r := Provide()

	next := date(2024, 3, 20)
	actions := []domain.CollectionAction{
		{ID: 1, OrgID: orgA, ClientID: client1, InvoiceID: id(10), ActionType: "email", Description: "a", CreatedAt: date(2024, 3, 1)},
		{ID: 2, OrgID: orgA, ClientID: client1, InvoiceID: id(10), ActionType: "call", Description: "b", Outcome: "no answer", NextActionDate: &next, CreatedAt: date(2024, 3, 3)},
		{ID: 3, OrgID: orgA, ClientID: client1, ActionType: "note", Description: "c", CreatedAt: date(2024, 3, 2)},
		{ID: 4, OrgID: orgB, ClientID: client1, InvoiceID: id(10), ActionType: "call", Description: "d", CreatedAt: date(2024, 3, 4)},
	}
	for i := range actions {
		_, err := r.InsertAction(ctx, db, &actions[i])
		require.NoError(t, err)
	}

	counts, err := r.CountActions(ctx, db, orgA)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	byScope := map[string]int{}
	for _, c := range counts {
		key := "client"
		if c.InvoiceID != nil {
			key = "invoice"
			assert.Equal(t, snowflake.ID(10), *c.InvoiceID)
		}
		assert.Equal(t, client1, c.ClientID)
		byScope[key] = c.Count
	}
	assert.Equal(t, map[string]int{"invoice": 2, "client": 1}, byScope)

	listed, err := r.ListActions(ctx, db, orgA, domain.ActionFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, []snowflake.ID{2, 3, 1}, []snowflake.ID{listed[0].ID, listed[1].ID, listed[2].ID})
	assert.Equal(t, "no answer", listed[0].Outcome)
	require.NotNil(t, listed[0].NextActionDate)
	assert.True(t, next.Equal(*listed[0].NextActionDate))

	limited, err := r.ListActions(ctx, db, orgA, domain.ActionFilter{InvoiceID: id(10), Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, snowflake.ID(2), limited[0].ID)
}
