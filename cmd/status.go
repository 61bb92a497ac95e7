package cmd

import (
	"fmt"

	"agentforge/internal/config"
	"agentforge/internal/inventory"
	"agentforge/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List provisioned agent hosts",
	Long:  `Print the hosts recorded in the local inventory with their endpoints and state.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			logging.Logger().Fatal("Failed to load configuration", zap.Error(err))
		}

		inv, err := inventory.Load(cfg.InventoryPath)
		if err != nil {
			logging.Logger().Fatal("Failed to load inventory", zap.Error(err))
		}

		records := inv.List()
		if len(records) == 0 {
			fmt.Println("No hosts in inventory")
			return
		}

		fmt.Printf("%-20s %-20s %-14s %-16s %-12s %s\n", "NAME", "POOL", "PROVIDER", "PUBLIC IP", "STATUS", "CREATED")
		for _, r := range records {
			fmt.Printf("%-20s %-20s %-14s %-16s %-12s %s\n",
				r.Name, r.Pool, r.Provider, r.PublicIP, r.Status, r.CreatedAt.Format("2006-01-02 15:04"))
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
