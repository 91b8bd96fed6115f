package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryotapoi/backlinks/internal/core"
)

type queryOptions struct {
	file     string
	fast     bool
	original bool
	format   string
	sort     string
}

func newQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List the documents linking to a file",
		Long: `List the documents linking to a file, with every reference each one holds.

By default pending changes are applied before reading (consistent mode).
--fast reads the graph as it is; --original bypasses the graph and scans
the whole vault.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, rootOpts, opts)
		},
	}
	cmd.Flags().StringVar(&opts.file, "file", "", "vault-relative path of the target document")
	cmd.Flags().BoolVar(&opts.fast, "fast", false, "read the graph without applying pending changes")
	cmd.Flags().BoolVar(&opts.original, "original", false, "scan the vault instead of reading the graph")
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format (json or text)")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "source order (overrides sort_order)")
	_ = cmd.MarkFlagRequired("file")
	cmd.MarkFlagsMutuallyExclusive("fast", "original")
	return cmd
}

func runQuery(cmd *cobra.Command, rootOpts *RootOptions, opts *queryOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	if opts.file == "" {
		return fmt.Errorf("--file is required")
	}
	ctx := cmd.Context()
	e, err := openEnv(ctx, cmd, rootOpts, envOptions{sort: opts.sort})
	if err != nil {
		return err
	}
	defer e.Close()

	target := core.NormalizePath(opts.file)
	var backlinks []core.Backlink
	switch {
	case opts.original:
		backlinks, err = e.svc.Facade().Original().Backlinks(ctx, target)
	case opts.fast:
		backlinks = e.svc.Facade().Fast(target)
	default:
		backlinks, err = e.svc.Facade().Safe(ctx, target)
	}
	if err != nil {
		return err
	}

	switch opts.format {
	case "json":
		return printQueryJSON(cmd.OutOrStdout(), target, backlinks)
	default:
		return printQueryText(cmd.OutOrStdout(), target, backlinks)
	}
}
