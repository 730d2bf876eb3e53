package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/collections/internal/clock"
	"github.com/smallbiznis/collections/internal/collections/domain"
	"github.com/smallbiznis/collections/internal/collections/engine"
	"github.com/smallbiznis/collections/internal/config"
	"github.com/spf13/cobra"
)

// ResolveCmd previews the workflow instance an invoice would produce.
func ResolveCmd(clk clock.Clock) *cobra.Command {
	var (
		file       string
		days       int
		amount     string
		number     string
		clientName string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the stage, next action and priority for an invoice",
		Example: `  collectionsctl resolve --days 40 --amount 1200
  collectionsctl resolve --days -2 --amount 80000 --file workflow.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			amt, err := decimal.NewFromString(amount)
			if err != nil || amt.IsNegative() {
				return fmt.Errorf("invalid --amount %q", amount)
			}
			cfg, err := config.LoadWorkflowConfigFile(file)
			if err != nil {
				return fmt.Errorf("workflow file rejected: %w", err)
			}

			now := clk.Now()
			inv := domain.Invoice{
				ID:            1,
				ClientID:      1,
				ClientName:    clientName,
				InvoiceNumber: number,
				Amount:        amt,
				DueDate:       engine.AddDays(now, -days),
				Status:        domain.InvoiceStatusOpen,
			}
			inst := engine.BuildInstances(engine.Snapshot{Invoices: []domain.Invoice{inv}}, cfg, now)[0]

			fmt.Fprintf(out, "Days overdue:  %d\n", inst.DaysOverdue)
			fmt.Fprintf(out, "Current stage: %s\n", inst.CurrentStage)
			fmt.Fprintf(out, "Next action:   %s on %s\n", inst.NextActionType, inst.NextActionDate.Format(time.DateOnly))
			switch {
			case inst.NextStageID != "":
				fmt.Fprintf(out, "Next stage:    %s\n", inst.NextStageID)
			case inst.CurrentStageID == "":
				fmt.Fprintln(out, "Next stage:    (no stages configured)")
			default:
				fmt.Fprintln(out, "Next stage:    (final stage reached)")
			}
			fmt.Fprintf(out, "Priority:      %s\n", priorityLabel(inst.Priority))
			if inst.InGracePeriod {
				fmt.Fprintf(out, "%s invoice is inside the %d day grace period\n", warnLabel("NOTE"), cfg.GraceDays)
			}
			if inst.Message != "" {
				fmt.Fprintf(out, "Message:       %s\n", inst.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "workflow YAML file (defaults when empty)")
	cmd.Flags().IntVar(&days, "days", 0, "days past due; negative when not yet due")
	cmd.Flags().StringVar(&amount, "amount", "0", "invoice amount")
	cmd.Flags().StringVar(&number, "number", "INV-PREVIEW", "invoice number used in rendered messages")
	cmd.Flags().StringVar(&clientName, "client", "Client", "client name used in rendered messages")
	return cmd
}

func priorityLabel(p domain.Priority) string {
	switch p {
	case domain.PriorityCritical:
		return errLabel(string(p))
	case domain.PriorityHigh:
		return warnLabel(string(p))
	default:
		return string(p)
	}
}
