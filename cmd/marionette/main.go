package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/marionette/cmd/marionette/cmds"
	"github.com/go-go-golems/marionette/pkg/logging"
	"github.com/go-go-golems/marionette/pkg/settings"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "marionette",
	Short: "marionette drives a model through a task, with an operator or a supervisor model answering it",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		return logging.InitFromCommand(cmd)
	},
	SilenceUsage: true,
	RunE:         cmds.Run,
}

func main() {
	logging.AddFlags(rootCmd)
	settings.AddFlags(rootCmd)
	rootCmd.AddCommand(cmds.NewPromptsCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	cobra.CheckErr(err)
}
