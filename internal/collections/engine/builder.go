package engine

import (
	"cmp"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collections/internal/collections/domain"
)

// Snapshot is the point-in-time ledger data a workflow computation runs on.
type Snapshot struct {
	Invoices     []domain.Invoice
	Promises     []domain.PaymentPromise
	ActionCounts []domain.ActionCount
}

// scopedIndex keys ledger rows by invoice when they carry one and by client
// otherwise, mirroring how actions and promises are recorded.
type scopedIndex struct {
	byInvoice map[snowflake.ID]int
	byClient  map[snowflake.ID]int
}

func newScopedIndex() scopedIndex {
	return scopedIndex{
		byInvoice: map[snowflake.ID]int{},
		byClient:  map[snowflake.ID]int{},
	}
}

func (ix scopedIndex) add(clientID snowflake.ID, invoiceID *snowflake.ID, n int) {
	if invoiceID != nil && *invoiceID != 0 {
		ix.byInvoice[*invoiceID] += n
		return
	}
	ix.byClient[clientID] += n
}

// lookup prefers the invoice-scoped value and falls back to the client.
func (ix scopedIndex) lookup(invoiceID, clientID snowflake.ID) int {
	if n := ix.byInvoice[invoiceID]; n > 0 {
		return n
	}
	return ix.byClient[clientID]
}

// BuildInstances derives one workflow instance per open invoice and returns
// them sorted. Resolved promises in the snapshot are ignored.
func BuildInstances(snap Snapshot, cfg domain.WorkflowConfig, now time.Time) []domain.WorkflowInstance {
	today := StartOfDay(now)

	promises := newScopedIndex()
	for _, p := range snap.Promises {
		if !p.Unresolved() {
			continue
		}
		promises.add(p.ClientID, p.InvoiceID, 1)
	}

	history := newScopedIndex()
	for _, c := range snap.ActionCounts {
		history.add(c.ClientID, c.InvoiceID, c.Count)
	}

	instances := make([]domain.WorkflowInstance, 0, len(snap.Invoices))
	for _, inv := range snap.Invoices {
		instances = append(instances, buildInstance(inv, cfg, today, promises, history))
	}

	SortInstances(instances)
	return instances
}

func buildInstance(inv domain.Invoice, cfg domain.WorkflowConfig, today time.Time, promises, history scopedIndex) domain.WorkflowInstance {
	daysOverdue := DaysBetween(inv.DueDate, today)

	inst := domain.WorkflowInstance{
		InvoiceID:      inv.ID,
		ClientID:       inv.ClientID,
		ClientName:     inv.ClientName,
		InvoiceNumber:  inv.InvoiceNumber,
		Amount:         inv.Amount,
		DueDate:        inv.DueDate,
		DaysOverdue:    daysOverdue,
		CurrentStage:   PreDueStageName,
		NextActionType: domain.ActionTypeReminder,
		InGracePeriod:  daysOverdue > 0 && daysOverdue <= cfg.GraceDays,
	}

	current, hasCurrent := CurrentStage(daysOverdue, cfg)
	next, hasNext := NextStage(daysOverdue, cfg)

	if hasCurrent {
		inst.CurrentStage = current.Name
		inst.CurrentStageID = current.ID
		inst.StagePriority = current.Priority
		inst.Message = RenderMessage(current.MessageTemplate, inv.InvoiceNumber, inv.Amount, inv.ClientName)
		inst.NextActionType = current.ActionType
	}

	daysUntilNext := cfg.ReminderFrequencyDays
	if hasNext {
		inst.NextStageID = next.ID
		inst.NextActionType = next.ActionType
		inst.AutoExecute = next.AutoExecute
		daysUntilNext = next.OffsetDays - daysOverdue
	}
	inst.NextActionDate = AddDays(today, max(daysUntilNext, 0))

	inst.HistoryCount = history.lookup(inv.ID, inv.ClientID)
	inst.HasActivePromise = promises.lookup(inv.ID, inv.ClientID) > 0
	inst.Priority = Classify(inv.Amount, daysOverdue, cfg)

	return inst
}

// CompareInstances orders by priority rank, then most overdue first, then
// invoice ID so that no two distinct invoices compare equal.
func CompareInstances(a, b domain.WorkflowInstance) int {
	if c := cmp.Compare(a.Priority.Rank(), b.Priority.Rank()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.DaysOverdue, a.DaysOverdue); c != 0 {
		return c
	}
	return cmp.Compare(a.InvoiceID, b.InvoiceID)
}

func SortInstances(instances []domain.WorkflowInstance) {
	slices.SortStableFunc(instances, CompareInstances)
}
