package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}
	root := &cobra.Command{
		Use:           "corrflow",
		Short:         "Route official correspondence through its approval chain",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&ctx.socket, "socket", "", "Daemon control socket (defaults to paths.socket_path)")
	flags.StringVarP(&ctx.configPath, "config", "c", "", "Configuration file")
	flags.BoolVar(&ctx.asJSON, "json", false, "Print JSON instead of tables")

	root.AddCommand(
		newServeCommand(ctx),
		newConfigCommand(ctx),
		newOrgCommand(ctx),
		newListCommand(ctx),
		newShowCommand(ctx),
		newStagesCommand(ctx),
		newSignCommand(ctx),
		newStatsCommand(ctx),
		newNotificationsCommand(ctx),
		newLogsCommand(ctx),
	)
	root.AddCommand(newDaemonCommands(ctx)...)
	return root
}
