package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quire-dev/quire/internal/domain"
)

// blocksCmd represents the blocks command.
var blocksCmd = newBlocksCmd()
var blocksExcludeFlags []string

func newBlocksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocks [paths...]",
		Short: "List the block structure of pages",
		Long: `List every page under the given paths with its blocks: ids, types and
text previews. On a terminal the listing is an interactive browser;
piped output is a plain table.

Pages with "ignore: true" in their frontmatter are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Blocks(cmd.Context(), domain.BlocksArgs{
				Roots:    parsePaths(args),
				Excludes: blocksExcludeFlags,
			})
		},
	}
	cmd.Flags().StringArrayVarP(&blocksExcludeFlags, "exclude", "x", nil, "exclude files matching regex (can be repeated)")

	return cmd
}

func init() {
	rootCmd.AddCommand(blocksCmd)
}
