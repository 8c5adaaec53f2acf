// Package cmd provides the root command and CLI setup for quire.
package cmd

import (
	"context"
	goflag "flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/quire-dev/quire/internal/adapter"
	"github.com/quire-dev/quire/internal/controller"
	"github.com/quire-dev/quire/internal/domain"
	m "github.com/quire-dev/quire/internal/model"
)

var fs adapter.FileSystem
var ui controller.UI
var workflow domain.Workflow

func init() {
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	fs = adapter.NewLocalFS()
	workflow = domain.NewWorkflow(fs, ui)
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quire",
		Short: "Page source toolkit",
		Long: `Quire works on page sources: a YAML frontmatter header followed by
tag markup, one file per page.

It parses pages into element trees, lists their block structure across
a directory, normalizes their layout, applies JSON operation streams as
surgical byte-range edits, opens an interactive block editor synced
against a store, and serves a page directory to remote editors.

Paths support a Go-style recursive suffix:
  - pages/...     descend into subdirectories
  - pages         the directory itself only`,
		SilenceUsage: true,
	}

	// glog registers its flags (-v, -logtostderr, ...) on the standard
	// flag set.
	cmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)

	return cmd
}

// Execute runs the root command with a context that ends on SIGINT or
// SIGTERM, so long-running commands shut down cleanly. This is called by
// main.main().
func Execute() {
	defer glog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// parsePaths maps positional arguments to model paths, defaulting to the
// current directory.
func parsePaths(args []string) []m.Path {
	if len(args) == 0 {
		return []m.Path{"."}
	}

	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}
