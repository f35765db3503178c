// Package cli implements the netguard command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/netguard/config"
)

type globalFlags struct {
	configFile string
	envFile    string
	debug      bool
}

// NewRootCommand builds the netguard command tree.
func NewRootCommand() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "netguard",
		Short:         "Network resilience for backend calls",
		Long:          `netguard tracks backend reachability, retries failed requests with exponential backoff and queues requests while the backend is offline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default: search for netguard.yaml)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "dotenv file (default: ./.env when present)")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newProbeCommand(&flags),
		newWatchCommand(&flags),
		newIssueCommand(&flags),
		newServeCommand(&flags),
	)
	return root
}

// Execute runs the root command with a context cancelled on SIGINT or
// SIGTERM.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("Error:", err)
		return 1
	}
	return 0
}

func loadConfig(ctx context.Context, flags *globalFlags) (*config.Config, error) {
	var opts []config.Option
	if flags.configFile != "" {
		opts = append(opts, config.WithConfigFile(flags.configFile))
	}
	if flags.envFile != "" {
		opts = append(opts, config.WithEnvFile(flags.envFile))
	}
	cfg, err := config.Load(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if flags.debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// start loads the configuration and builds the runtime for cmd.
func start(cmd *cobra.Command, flags *globalFlags, ro runtimeOptions) (*runtime, error) {
	cfg, err := loadConfig(cmd.Context(), flags)
	if err != nil {
		return nil, err
	}
	if ro.logOut == nil {
		ro.logOut = cmd.ErrOrStderr()
	}
	return newRuntime(cmd.Context(), cfg, ro)
}
