package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quire-dev/quire/internal/domain"
	m "github.com/quire-dev/quire/internal/model"
)

// fmtCmd represents the fmt command.
var fmtCmd = newFmtCmd()
var fmtWriteFlag bool

func newFmtCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fmt <file>",
		Short: "Normalize a page's layout",
		Long: `Re-serialize a page into canonical form: frontmatter header, one blank
line between blocks, canonical tag rendering. Prints the result unless
--write rewrites the file in place. Pages with parse errors are left
untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Format(cmd.Context(), domain.FormatArgs{
				Path:  m.Path(args[0]),
				Write: fmtWriteFlag,
			})
		},
	}
	cmd.Flags().BoolVarP(&fmtWriteFlag, "write", "w", false, "rewrite the file instead of printing")

	return cmd
}

func init() {
	rootCmd.AddCommand(fmtCmd)
}
