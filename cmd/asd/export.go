package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const cliActor = "cli"

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Write the persisted knowledge graph as JSON under the export root",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			relPath := fmt.Sprintf("graph-%s.json", time.Now().UTC().Format("20060102-150405"))
			if len(args) == 1 {
				relPath = args[0]
			}
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			snap := a.system.Graph().Snapshot()
			written, err := a.exports.WriteSnapshot(cmd.Context(), cliActor, relPath, snap)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d nodes and %d edges to %s\n", len(snap.Nodes), len(snap.Edges), written)
			return nil
		},
	}
}
