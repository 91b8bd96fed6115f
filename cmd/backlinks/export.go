package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ryotapoi/backlinks/internal/core"
)

func newExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the link graph to a SQLite snapshot",
		Long: `Write the link graph to a SQLite snapshot with a nodes and an edges table.
The default location is .backlinks/graph.sqlite inside the vault.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd, rootOpts, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			path := out
			if path == "" {
				path = core.DefaultExportPath(e.vault.Root())
			}
			result, err := core.Export(ctx, e.svc, path)
			if err != nil {
				return err
			}
			size := "?"
			if fi, err := os.Stat(result.Path); err == nil {
				size = humanize.Bytes(uint64(fi.Size()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s): %s nodes, %s edges\n",
				result.Path, size, humanize.Comma(int64(result.Nodes)), humanize.Comma(int64(result.Edges)))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "snapshot file (default <vault>/.backlinks/graph.sqlite)")
	return cmd
}
