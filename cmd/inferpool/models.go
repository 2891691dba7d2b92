package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"inferpool/internal/pool"
)

func newModelsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "models",
		Short:   "Query every server's manifest once and print what it serves",
		Example: "  inferpool models --servers http://gpu0:8000,http://gpu1:8000 --json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, os.Getenv)
			if err != nil {
				return err
			}
			p := pool.New(cfg.Servers,
				pool.WithLogger(newLogger(cfg, stderr)),
				pool.WithManifestTimeout(cfg.ManifestTimeout()),
			)
			return printModels(cmd.Context(), cmd.OutOrStdout(), p, asJSON)
		},
	}
	addServerFlags(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func printModels(ctx context.Context, out io.Writer, p *pool.Pool, asJSON bool) error {
	p.RefreshAllManifests(ctx)
	snap := p.Snapshot()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"servers": snap,
			"models":  p.AvailableModels(),
		})
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVER\tMODELS")
	for _, s := range snap {
		models := strings.Join(s.Models, ",")
		if models == "" {
			models = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\n", s.URL, models)
	}
	return tw.Flush()
}
