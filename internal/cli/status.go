package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/costargen/costargen/internal/bootstrap"
	"github.com/costargen/costargen/internal/provider"
)

var statusProbe bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured providers and their standing",
	Long: `List every provider with a credential in the environment, in
fallback priority order. With --probe each provider receives one tiny
live request to verify the credential actually works.`,
	Run: func(c *cobra.Command, args []string) {
		cfg, err := bootstrap.Load(configPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		registry := provider.LoadFromEnvironment(cfg.InvokeTimeout())
		if registry.Len() == 0 {
			fmt.Println("No provider credentials found; requests will use the static fallback.")
			return
		}

		fmt.Printf("%-14s %-8s %-9s %-12s %s\n", "PROVIDER", "PRIORITY", "ENABLED", "CALLS TODAY", "BUDGET")
		for _, st := range registry.Statuses() {
			budget := fmt.Sprintf("%d", st.DailyBudget)
			if st.DailyBudget == provider.UnlimitedBudget {
				budget = "unlimited"
			}
			fmt.Printf("%-14s %-8d %-9t %-12d %s\n", st.Name, st.Priority, st.Enabled, st.CallsToday, budget)
		}
		fmt.Printf("\nNext in line: %s\n", registry.NextAvailable())

		if !statusProbe {
			return
		}

		fmt.Println("\nProbing providers...")
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		for _, res := range registry.Probe(ctx) {
			if res.OK {
				fmt.Printf("  %-14s ok (%dms)\n", res.Name, res.Latency)
			} else {
				fmt.Printf("  %-14s FAILED: %s\n", res.Name, res.Error)
			}
		}
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusProbe, "probe", false, "Send one live request per provider")
}
