package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quire-dev/quire/internal/domain"
	m "github.com/quire-dev/quire/internal/model"
)

// parseCmd represents the parse command.
var parseCmd = newParseCmd()
var parseJSONFlag bool

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse one page and show its element tree",
		Long: `Parse one page and show its frontmatter title, element tree and any
parse problems. Problems are recoverable: the tree covers everything the
parser could make sense of.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Inspect(cmd.Context(), domain.InspectArgs{
				Path:   m.Path(args[0]),
				AsJSON: parseJSONFlag,
			})
		},
	}
	cmd.Flags().BoolVar(&parseJSONFlag, "json", false, "emit the tree as JSON")

	return cmd
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
