package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zerochrono/copilot-backend/internal/platform/shutdown"
	"github.com/zerochrono/copilot-backend/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := shutdown.NotifyContext(cmd.Context())
		defer stop()

		a, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		if err := a.Run(ctx); err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		a.Log.Info("server stopped")
		return nil
	},
}

var forceBuild bool

var buildGraphCmd = &cobra.Command{
	Use:   "build-graph",
	Short: "Build the knowledge graph document from the CSV sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := shutdown.NotifyContext(cmd.Context())
		defer stop()

		a, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		doc, err := a.BuildGraph(ctx, forceBuild)
		if err != nil {
			return fmt.Errorf("build graph: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "graph: %d nodes, %d links\n", len(doc.Nodes), len(doc.Links))
		return nil
	},
}

var syncGraphCmd = &cobra.Command{
	Use:   "sync-graph",
	Short: "Load the graph document into Neo4j",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := shutdown.NotifyContext(cmd.Context())
		defer stop()

		a, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		view, err := a.SyncGraph(ctx)
		if err != nil {
			return fmt.Errorf("sync graph: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d nodes, %d edges\n", len(view.Nodes), len(view.Edges))
		return nil
	},
}

var (
	askTopK      int
	askNeighborK int
	askTypes     string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from graph context",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := shutdown.NotifyContext(cmd.Context())
		defer stop()

		a, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		in := services.AskInput{Question: strings.Join(args, " ")}
		if cmd.Flags().Changed("top-k") {
			in.TopK = &askTopK
		}
		if cmd.Flags().Changed("neighbor-k") {
			in.NeighborK = &askNeighborK
		}
		for _, t := range strings.Split(askTypes, ",") {
			if t = strings.TrimSpace(t); t != "" {
				in.IncludeTypes = append(in.IncludeTypes, t)
			}
		}

		res, err := a.Ask(ctx, in)
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	buildGraphCmd.Flags().BoolVarP(&forceBuild, "force", "f", false, "Rebuild even when a graph document exists")

	askCmd.Flags().IntVar(&askTopK, "top-k", 6, "Top nodes to retrieve")
	askCmd.Flags().IntVar(&askNeighborK, "neighbor-k", 4, "Neighbor rows to expand (shared across top nodes)")
	askCmd.Flags().StringVar(&askTypes, "types", "", "Comma-separated node labels to search (default: all)")
}
