package engine

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/collections/internal/collections/domain"
)

// PreDueStageName labels instances that have not reached any stage yet.
const PreDueStageName = "Pre-due"

// CurrentStage returns the latest stage already reached: the greatest
// OffsetDays that is <= daysOverdue. Equal offsets resolve to the stage
// declared first in the catalog.
func CurrentStage(daysOverdue int, cfg domain.WorkflowConfig) (domain.StageDefinition, bool) {
	var (
		best  domain.StageDefinition
		found bool
	)
	for _, stage := range cfg.Stages {
		if stage.OffsetDays > daysOverdue {
			continue
		}
		if !found || stage.OffsetDays > best.OffsetDays {
			best = stage
			found = true
		}
	}
	return best, found
}

// NextStage returns the soonest stage not reached yet: the smallest
// OffsetDays that is > daysOverdue, with the same declaration-order tie-break.
func NextStage(daysOverdue int, cfg domain.WorkflowConfig) (domain.StageDefinition, bool) {
	var (
		best  domain.StageDefinition
		found bool
	)
	for _, stage := range cfg.Stages {
		if stage.OffsetDays <= daysOverdue {
			continue
		}
		if !found || stage.OffsetDays < best.OffsetDays {
			best = stage
			found = true
		}
	}
	return best, found
}

// RenderMessage fills the {invoice_number}, {amount} and {client_name}
// placeholders of a stage template.
func RenderMessage(template, invoiceNumber string, amount decimal.Decimal, clientName string) string {
	if template == "" {
		return ""
	}
	r := strings.NewReplacer(
		"{invoice_number}", invoiceNumber,
		"{amount}", amount.StringFixed(2),
		"{client_name}", clientName,
	)
	return r.Replace(template)
}
