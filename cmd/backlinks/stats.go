package main

import (
	"github.com/spf13/cobra"

	"github.com/ryotapoi/backlinks/internal/core"
)

func newStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var format, fields string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show link graph statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			fieldList := parseFields(fields)
			if err := core.ValidateStatsFields(fieldList); err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), cmd, rootOpts, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := core.Stats(e.svc, core.StatsOptions{Fields: fieldList})
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return printStatsJSON(cmd.OutOrStdout(), result, fieldList)
			default:
				return printStatsText(cmd.OutOrStdout(), result, fieldList)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (json or text)")
	cmd.Flags().StringVar(&fields, "fields", "", "comma-separated fields to output")
	return cmd
}
