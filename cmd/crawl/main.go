package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/followgraph/internal/bootstrap"
	"github.com/OFFIS-RIT/followgraph/internal/util"
	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/graph"
	"github.com/OFFIS-RIT/followgraph/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		maxPages  int
		pageDelay time.Duration
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:           "crawl <handle>",
		Short:         "Crawl a handle's follows once and publish the edges",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if !common.ValidHandle(args[0]) {
				return fmt.Errorf("invalid handle %q", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			util.LoadEnv()
			bootstrap.InitLogger()

			cfg := bootstrap.CrawlConfigFromEnv()
			if cmd.Flags().Changed("max-pages") {
				cfg.MaxPages = maxPages
			}
			if cmd.Flags().Changed("page-delay") {
				cfg.PageDelay = pageDelay
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := run(ctx, cfg, args[0])
			if err != nil {
				logger.Error("Crawl failed", "handle", args[0], "err", err)
				return err
			}
			return printResult(cmd, res, asJSON)
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", graph.DefaultMaxPages, "maximum number of pages to fetch")
	cmd.Flags().DurationVar(&pageDelay, "page-delay", 0, "delay between page fetches")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func run(ctx context.Context, cfg bootstrap.CrawlConfig, handle string) (graph.CrawlResult, error) {
	engine, err := bootstrap.NewEngine(ctx, cfg)
	if err != nil {
		return graph.CrawlResult{}, err
	}
	defer func() {
		if err := engine.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to close graph engine", "err", err)
		}
	}()

	return engine.Crawl(ctx, handle)
}

func printResult(cmd *cobra.Command, res graph.CrawlResult, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(out, "handle:      %s\n", res.Handle)
	fmt.Fprintf(out, "pages:       %d\n", res.PagesProcessed)
	fmt.Fprintf(out, "connections: %d (%d failed)\n", res.ConnectionsProcessed, res.ConnectionsFailed)
	fmt.Fprintf(out, "edges:       %d created, %d published\n", res.EdgesCreated, res.EdgesPublished)
	if res.Truncated {
		fmt.Fprintln(out, "truncated:   page limit reached")
	}
	return nil
}
