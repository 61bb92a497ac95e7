package cmd

import (
	"context"
	"fmt"
	"time"

	"agentforge/internal/azdo"
	"agentforge/internal/config"
	"agentforge/internal/credentials"
	"agentforge/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verifyAgentName string
	verifyWait      bool
	verifyAttempts  int
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check agent registration in the configured pool",
	Long: `List the agents registered in the configured pool, or with --agent check
a single agent and optionally wait until it reports online.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			logging.Logger().Fatal("Failed to load configuration", zap.Error(err))
		}

		token, err := credentials.NewResolver().Resolve("AZP_TOKEN")
		if err != nil {
			logging.Logger().Fatal("Failed to resolve access token", zap.Error(err))
		}

		ctx := context.Background()
		client := azdo.NewClient(cfg.Agent.OrganizationURL, token)

		if verifyAgentName != "" {
			attempts := 1
			if verifyWait {
				attempts = verifyAttempts
			}
			agent, err := client.WaitForAgentOnline(ctx, cfg.Agent.Pool, verifyAgentName, attempts, 10*time.Second)
			if err != nil {
				logging.Logger().Fatal("Agent is not online", zap.Error(err))
			}
			fmt.Printf("Agent %s is %s (version %s)\n", agent.Name, agent.Status, agent.Version)
			return
		}

		pool, err := client.PoolByName(ctx, cfg.Agent.Pool)
		if err != nil {
			logging.Logger().Fatal("Failed to look up pool", zap.Error(err))
		}
		agents, err := client.Agents(ctx, pool.ID)
		if err != nil {
			logging.Logger().Fatal("Failed to list agents", zap.Error(err))
		}

		fmt.Printf("Pool %s (id %d): %d agents\n", pool.Name, pool.ID, len(agents))
		for _, agent := range agents {
			fmt.Printf("  %-30s %-10s %s\n", agent.Name, agent.Status, agent.Version)
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&verifyAgentName, "agent", "a", "", "Agent name to check")
	verifyCmd.Flags().BoolVar(&verifyWait, "wait", false, "Poll until the agent reports online")
	verifyCmd.Flags().IntVar(&verifyAttempts, "attempts", 30, "Polling attempts when waiting")
}
