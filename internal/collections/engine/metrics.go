package engine

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/collections/internal/collections/domain"
)

const atRiskDays = 30

// Aggregate derives the summary counters from a computed instance set and
// the tenant's promises.
func Aggregate(instances []domain.WorkflowInstance, promises []domain.PaymentPromise, today time.Time) domain.Metrics {
	m := domain.Metrics{
		TotalWorkflows: len(instances),
		AmountAtRisk:   decimal.Zero,
	}
	day := StartOfDay(today)

	for _, inst := range instances {
		if inst.Priority == domain.PriorityCritical || inst.Priority == domain.PriorityHigh {
			m.CriticalOrHigh++
		}
		if inst.DaysOverdue > atRiskDays {
			m.AmountAtRisk = m.AmountAtRisk.Add(inst.Amount)
		}
		if StartOfDay(inst.NextActionDate).Equal(day) {
			m.ActionsDueToday++
		}
	}

	for _, p := range promises {
		switch DerivePromiseState(p, today) {
		case domain.PromiseStatePending:
			m.PendingPromises++
		case domain.PromiseStateBroken:
			m.BrokenPromises++
		case domain.PromiseStatePartial:
			m.PartialPromises++
		case domain.PromiseStateFulfilled:
			m.FulfilledPromises++
		}
	}
	return m
}
