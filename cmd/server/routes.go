package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/simp-lee/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/simp-lee/layover/internal/app"
	"github.com/simp-lee/layover/internal/config"
	"github.com/simp-lee/layover/internal/module/console"
	"github.com/simp-lee/layover/internal/route"
)

const routesLoadTimeout = 10 * time.Second

func routesCmd(configPath *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the console route table",
		Long: `Build the console route table from the configured addons and the
addon registry, print it, and report any rule the server would refuse to
mount: collisions, reserved prefixes and relative paths.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log, err := logger.New(append(config.BuildLoggerOpts(&cfg.Log), logger.WithConsoleWriter(cmd.ErrOrStderr()))...)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer log.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), routesLoadTimeout)
			defer cancel()

			table, err := app.LoadRouteTable(ctx, cfg, log.Logger)
			if err != nil {
				return err
			}
			if err := writeTable(cmd.OutOrStdout(), table, format); err != nil {
				return err
			}
			return console.Check(table, app.ReservedPrefixes(cfg)...)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or yaml")

	return cmd
}

func writeTable(w io.Writer, table *route.Table, format string) error {
	listing := console.Listing{Rules: table.Rules()}
	if fb, ok := table.Fallback(); ok {
		listing.Fallback = &fb
	}

	switch strings.ToLower(format) {
	case "text", "":
		return writeText(w, listing)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(listing); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q: must be text, json or yaml", format)
	}
}

func writeText(w io.Writer, listing console.Listing) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tPATH\tTEMPLATE\tCONTROLLER")
	for _, r := range listing.Rules {
		ctl := r.ControllerRef
		if ctl == "" {
			ctl = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Source, r.Path, r.TemplateRef, ctl)
	}
	if listing.Fallback != nil {
		fmt.Fprintf(tw, "otherwise\t*\t-> %s\t-\n", listing.Fallback.RedirectTo)
	}
	return tw.Flush()
}
