package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"asd_commerce/internal/domain"
	"asd_commerce/internal/system"
)

var demoTasks = []struct {
	priority    int
	agentType   domain.AgentType
	description string
}{
	{1, domain.AgentTypeProduct, "Product Research: Research top-selling products in electronics"},
	{2, domain.AgentTypeCustomer, "Sentiment Analysis: Analyze customer reviews for iPhone 12"},
	{3, domain.AgentTypeMarket, "Market Research: Research market trends for smartphones"},
	{4, domain.AgentTypeSales, "Lead Generation: Generate leads for iPhone 12"},
}

var demoPrompts = []string{
	"Product-Price-Customer (PPC) Analysis: Collaborate to analyze iPhone 12 features, pricing, and customer preferences",
	"Sales Strategy Development: Develop sales strategies for iPhone 12 based on market trends, customer profiles, and competitor analysis",
	"Autonomous Decision-Making: Make autonomous decisions on pricing, inventory management, and sales strategies for iPhone 12",
}

func newDemoCmd(opts *rootOptions) *cobra.Command {
	var drainAfter bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Seed the four sample tasks, drain them and run the three collaboration prompts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			if opts.cfg.Notify.Enabled {
				stop := a.startNotifier(ctx, "demo-notifier", nil)
				defer stop()
			}
			return runDemo(ctx, a.system, cmd.OutOrStdout(), drainAfter)
		},
	}
	cmd.Flags().BoolVar(&drainAfter, "drain-after", true, "drain the tasks the prompts enqueue")
	return cmd
}

// runDemo seeds the queue, drains it, then fans out the collaboration
// prompts. A prompt that fails is reported and the demo moves on.
func runDemo(ctx context.Context, sys *system.System, out io.Writer, drainAfter bool) error {
	for _, t := range demoTasks {
		if _, err := sys.AddTask(ctx, t.priority, t.agentType, t.description); err != nil {
			return err
		}
	}
	n, err := sys.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Drained %d tasks\n", n)

	for _, prompt := range demoPrompts {
		result, err := sys.Collaborate(ctx, prompt)
		if err != nil {
			fmt.Fprintf(out, "Collaboration failed: %v\n", err)
			continue
		}
		fmt.Fprintln(out, result)
	}

	if !drainAfter {
		fmt.Fprintf(out, "%d tasks left queued\n", len(sys.Pending()))
		return nil
	}
	n, err = sys.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Drained %d tasks\n", n)
	return nil
}
