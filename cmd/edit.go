package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quire-dev/quire/internal/domain"
	m "github.com/quire-dev/quire/internal/model"
	"github.com/quire-dev/quire/internal/session"
)

// editCmd represents the edit command.
var editCmd = newEditCmd()

var (
	editStoreFlag    string
	editServerFlag   string
	editDebounceFlag = session.DefaultDebounce
	editPollFlag     = session.DefaultPoll
	editGraceFlag    = session.DefaultGrace
)

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <file>",
		Short: "Edit a page interactively",
		Long: `Open a page in the interactive block editor. Edits save automatically
after a quiet period, and external changes to the page are picked up
while your own copy is clean.

The page syncs against its directory by default. --server edits against
a remote quire server instead; --store mem edits a scratch copy that is
discarded on exit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Edit(cmd.Context(), domain.EditArgs{
				Path:     m.Path(args[0]),
				Store:    editStoreFlag,
				Server:   editServerFlag,
				Debounce: editDebounceFlag,
				Poll:     editPollFlag,
				Grace:    editGraceFlag,
			})
		},
	}
	cmd.Flags().StringVar(&editStoreFlag, "store", "", "store kind: fs, mem or http (default fs)")
	cmd.Flags().StringVar(&editServerFlag, "server", "", "base URL of a quire server to edit against")
	cmd.Flags().DurationVar(&editDebounceFlag, "debounce", session.DefaultDebounce, "quiet period before an edit saves")
	cmd.Flags().DurationVar(&editPollFlag, "poll", session.DefaultPoll, "interval between checks for external changes")
	cmd.Flags().DurationVar(&editGraceFlag, "grace", session.DefaultGrace, "window after a save during which stale reads are not adopted")

	return cmd
}

func init() {
	rootCmd.AddCommand(editCmd)
}
