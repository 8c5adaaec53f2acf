package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quire-dev/quire/internal/domain"
	m "github.com/quire-dev/quire/internal/model"
)

// serveCmd represents the serve command.
var serveCmd = newServeCmd()
var serveAddrFlag string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <dir>",
		Short: "Serve a page directory to remote editors",
		Long: `Serve the pages in a directory over HTTP: GET and PUT page sources,
rename pages, and stream change notifications over a websocket. Remote
editors connect with quire edit --server. Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Serve(cmd.Context(), domain.ServeArgs{
				Dir:  m.Path(args[0]),
				Addr: serveAddrFlag,
			})
		},
	}
	cmd.Flags().StringVar(&serveAddrFlag, "addr", "127.0.0.1:7070", "listen address")

	return cmd
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
