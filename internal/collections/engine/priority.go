package engine

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/collections/internal/collections/domain"
)

const (
	criticalDays = 60
	highDays     = 30
	mediumDays   = 7
)

// Classify maps amount and age to a priority. It is independent of the
// priority carried by the stage the invoice has reached.
func Classify(amount decimal.Decimal, daysOverdue int, cfg domain.WorkflowConfig) domain.Priority {
	switch {
	case daysOverdue >= criticalDays || amount.GreaterThanOrEqual(cfg.CriticalAmountThreshold):
		return domain.PriorityCritical
	case daysOverdue >= highDays:
		return domain.PriorityHigh
	case daysOverdue >= mediumDays:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}
