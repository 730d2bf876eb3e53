package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/smallbiznis/collections/internal/config"
	"github.com/spf13/cobra"
)

// ConfigCmd groups workflow file commands.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Workflow configuration commands",
	}
	cmd.AddCommand(configValidateCmd())
	return cmd
}

func configValidateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow file and print its stage catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, err := config.LoadWorkflowConfigFile(file)
			if err != nil {
				fmt.Fprintf(out, "%s %v\n", errLabel("INVALID"), err)
				return fmt.Errorf("workflow file rejected: %w", err)
			}

			source := file
			if source == "" {
				source = "(built-in defaults)"
			}
			fmt.Fprintf(out, "%s %s\n", okLabel("VALID"), source)
			fmt.Fprintf(out, "  grace days: %d  reminder every: %d days  critical threshold: %s\n",
				cfg.GraceDays, cfg.ReminderFrequencyDays, cfg.CriticalAmountThreshold.StringFixed(2))
			if len(cfg.Stages) == 0 {
				fmt.Fprintf(out, "  %s no stages configured; every invoice stays pre-due\n", warnLabel("WARN"))
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "  ID\tOFFSET\tACTION\tPRIORITY\tAUTO")
			for _, stage := range cfg.Stages {
				fmt.Fprintf(tw, "  %s\t%d\t%s\t%s\t%t\n", stage.ID, stage.OffsetDays, stage.ActionType, stage.Priority, stage.AutoExecute)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "workflow YAML file (defaults when empty)")
	return cmd
}
