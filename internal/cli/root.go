package cli

import (
	"github.com/fatih/color"
	"github.com/smallbiznis/collections/internal/clock"
	"github.com/spf13/cobra"
)

var (
	okLabel   = color.New(color.FgGreen).SprintFunc()
	warnLabel = color.New(color.FgYellow).SprintFunc()
	errLabel  = color.New(color.FgRed).SprintFunc()
)

// NewRootCmd builds the operator CLI. clk anchors "today" for resolve.
func NewRootCmd(clk clock.Clock) *cobra.Command {
	root := &cobra.Command{
		Use:   "collectionsctl",
		Short: "Inspect and validate collections escalation workflows",
		Long: `collectionsctl works offline against a workflow file. It validates stage
catalogs before they are deployed and previews which stage and priority an
invoice would land in.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(ConfigCmd())
	root.AddCommand(ResolveCmd(clk))
	return root
}
