package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quire-dev/quire/internal/domain"
	m "github.com/quire-dev/quire/internal/model"
)

// applyCmd represents the apply command.
var applyCmd = newApplyCmd()
var applyFallbackOnlyFlag bool

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <file> <ops.json>",
		Short: "Apply a JSON operation stream to a page",
		Long: `Apply a JSON array of editor operations to a page. Operations resolve
to byte-range mutations against the page's current parse, so untouched
source keeps its exact layout; when a target cannot be resolved the
edited document is re-serialized wholesale instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Apply(cmd.Context(), domain.ApplyArgs{
				Path:         m.Path(args[0]),
				OpsPath:      m.Path(args[1]),
				FallbackOnly: applyFallbackOnlyFlag,
			})
		},
	}
	cmd.Flags().BoolVar(&applyFallbackOnlyFlag, "fallback-only", false, "skip surgical mutation and re-serialize the whole page")

	return cmd
}

func init() {
	rootCmd.AddCommand(applyCmd)
}
