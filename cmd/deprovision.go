package cmd

import (
	"context"
	"fmt"

	"agentforge/internal/config"
	"agentforge/internal/inventory"
	"agentforge/internal/logging"
	"agentforge/internal/provisioning"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// deprovisionCmd represents the deprovision command
var deprovisionCmd = &cobra.Command{
	Use:   "deprovision [name]",
	Short: "Delete a provisioned agent host",
	Long: `Delete the cloud resources of a host recorded in the inventory and drop
its record. The agent registration in the pool is not touched; remove it
from the pool through the service if needed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]

		cfg, err := config.Load()
		if err != nil {
			logging.Logger().Fatal("Failed to load configuration", zap.Error(err))
		}

		inv, err := inventory.Load(cfg.InventoryPath)
		if err != nil {
			logging.Logger().Fatal("Failed to load inventory", zap.Error(err))
		}
		record, ok := inv.Get(name)
		if !ok {
			logging.Logger().Fatal("Host is not in the inventory", zap.String("name", name))
		}

		ctx := context.Background()
		switch config.Provider(record.Provider) {
		case config.ProviderAzure:
			if cfg.Provisioner.Azure == nil || cfg.Provisioner.Azure.SubscriptionID == "" {
				logging.Logger().Fatal("Azure subscription is required (set provisioner.azure.subscription_id or AZURE_SUBSCRIPTION_ID)")
			}
			cloud, err := provisioning.NewAzureClient(cfg.Provisioner.Azure.SubscriptionID)
			if err != nil {
				logging.Logger().Fatal("Failed to create Azure client", zap.Error(err))
			}
			if err := cloud.DeleteVM(ctx, record.ResourceGroup, record.Name); err != nil {
				logging.Logger().Fatal("Failed to delete VM", zap.Error(err))
			}
		case "ssh":
			// Host was never created by us; only drop the record
		default:
			provisioner, err := provisioning.NewInstanceProvisioner(ctx, cfg.Provisioner)
			if err != nil {
				logging.Logger().Fatal("Failed to create provisioner", zap.Error(err))
			}
			if err := provisioner.Delete(ctx, record.InstanceID); err != nil {
				logging.Logger().Fatal("Failed to delete instance", zap.Error(err))
			}
		}

		inv.Remove(name)
		if err := inv.Save(cfg.InventoryPath); err != nil {
			logging.Logger().Warn("Failed to save inventory", zap.Error(err))
		}

		fmt.Printf("Host %s deprovisioned\n", name)
	},
}

func init() {
	rootCmd.AddCommand(deprovisionCmd)
}
