package main

import (
	"github.com/spf13/cobra"

	"github.com/ryotapoi/backlinks/internal/core"
)

func newDiagnoseCommand(rootOpts *RootOptions) *cobra.Command {
	var format, fields string
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check the graph invariant, ambiguous basenames, dangling links and drift from a full scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			fieldList := parseFields(fields)
			if err := validateFields(fieldList, core.DiagnoseFields, "diagnose"); err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd, rootOpts, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := core.Diagnose(ctx, e.svc, e.scan, core.DiagnoseOptions{Fields: fieldList})
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return printDiagnoseJSON(cmd.OutOrStdout(), result, fieldList)
			default:
				return printDiagnoseText(cmd.OutOrStdout(), result, fieldList)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (json or text)")
	cmd.Flags().StringVar(&fields, "fields", "", "comma-separated fields to output")
	return cmd
}
