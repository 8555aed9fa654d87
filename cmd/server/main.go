package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simp-lee/layover/internal/app"
	"github.com/simp-lee/layover/internal/config"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "layover",
		Short: "Repository manager console server",
		Long: `Layover serves the repository manager console.

Store views for remote, hosted and group repositories are built in.
Addons registered in the configuration file or through the registry API
contribute further console routes, which are mounted at startup.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to configuration file")

	rootCmd.AddCommand(
		serveCmd(&configPath),
		routesCmd(&configPath),
	)

	return rootCmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the console server",
		Long:  `Start the HTTP server. This is also what running layover without a command does.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*configPath)
		},
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	return a.Run()
}
