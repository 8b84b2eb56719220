// Command stellify lowers Laravel applications into the stellify record
// graph.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stellify/stellify/runtime/config"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type globals struct {
	configPath string
	debug      bool
	noColor    bool

	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	g := &globals{stdout: stdout, stderr: stderr}
	root := newRootCmd(g)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	FormatError(stderr, err, ShouldUseColor(g.noColor))
	var usage *usageError
	if errors.As(err, &usage) {
		return exitUsage
	}
	return exitError
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:           "stellify",
		Short:         "Lower PHP sources and Blade templates into stellify records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			g.logger = newLogger(g.stderr, g.debug || envDebug())
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.FileName, "Project file")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging (also STELLIFY_DEBUG=1)")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newExportCmd(g),
		newWatchCmd(g),
		newLowerCmd(g),
		newInspectCmd(g),
	)
	return root
}

// loadConfig reads the project file. The default file is optional; one
// named with --config is not.
func (g *globals) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(g.configPath, !cmd.Flags().Changed("config"))
}
