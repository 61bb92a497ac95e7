/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agentforge/internal/azdo"
	"agentforge/internal/config"
	"agentforge/internal/credentials"
	"agentforge/internal/inventory"
	"agentforge/internal/logging"
	"agentforge/internal/orchestrator"
	"agentforge/internal/provisioning"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	provisionName          string
	provisionAgentName     string
	provisionResourceGroup string
	provisionLocation      string
	provisionPlatform      string
	provisionSize          string
	provisionImage         string
	provisionVNet          string
	provisionSubnet        string
	provisionPublicIP      string
	provisionDataDiskGB    int32
	provisionVerify        bool
)

// provisionCmd represents the provision command
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision an Azure VM and register it as a build agent",
	Long: `Create a virtual machine in the given resource group, deliver the agent
installer through the VM run-command channel and register the agent into
the configured pool.

The personal access token is read from the AZP_TOKEN environment variable,
or prompted for when running interactively. Windows hosts additionally
require WIN_ADMIN_PASSWORD.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			logging.Logger().Fatal("Failed to load configuration", zap.Error(err))
		}

		if provisionResourceGroup == "" {
			logging.Logger().Fatal("Resource group is required")
		}
		if provisionName == "" {
			provisionName = fmt.Sprintf("agent-%s", uuid.NewString()[:8])
		}
		if provisionAgentName == "" {
			provisionAgentName = provisionName
		}

		platform := provisioning.Platform(strings.ToLower(provisionPlatform))

		resolver := credentials.NewResolver()
		token, err := resolver.Resolve("AZP_TOKEN")
		if err != nil {
			logging.Logger().Fatal("Failed to resolve access token", zap.Error(err))
		}
		secrets := orchestrator.Secrets{AccessToken: token}
		if platform == provisioning.PlatformWindows {
			password, err := resolver.Resolve("WIN_ADMIN_PASSWORD")
			if err != nil {
				logging.Logger().Fatal("Failed to resolve admin password", zap.Error(err))
			}
			secrets.AdminPassword = password
		}

		if cfg.Provisioner.Azure == nil || cfg.Provisioner.Azure.SubscriptionID == "" {
			logging.Logger().Fatal("Azure subscription is required (set provisioner.azure.subscription_id or AZURE_SUBSCRIPTION_ID)")
		}

		cloud, err := provisioning.NewAzureClient(cfg.Provisioner.Azure.SubscriptionID)
		if err != nil {
			logging.Logger().Fatal("Failed to create Azure client", zap.Error(err))
		}

		location := provisionLocation
		if location == "" {
			location = cfg.VM.Location
		}

		req := orchestrator.ProvisionRequest{
			OrganizationURL: cfg.Agent.OrganizationURL,
			PoolName:        cfg.Agent.Pool,
			ResourceGroup:   provisionResourceGroup,
			Location:        location,
			VMName:          provisionName,
			AgentName:       provisionAgentName,
			Platform:        platform,
		}
		opts := orchestrator.ProvisionOptions{
			Size:          firstNonEmpty(provisionSize, cfg.VM.Size),
			Image:         provisionImage,
			AdminUsername: cfg.VM.AdminUsername,
			VNetName:      provisionVNet,
			SubnetName:    provisionSubnet,
			PublicIP:      provisionPublicIP,
			DataDiskGB:    provisionDataDiskGB,
			Tags:          cfg.VM.Tags,
			AgentVersion:  cfg.Agent.Version,
			InstallHome:   cfg.Agent.InstallHome,
			WorkDir:       cfg.Agent.WorkDir,
		}
		if opts.DataDiskGB == 0 {
			opts.DataDiskGB = cfg.VM.DataDiskGB
		}
		if opts.Image == "" && platform == provisioning.PlatformWindows {
			opts.Image = cfg.VM.WindowsImage
		} else if opts.Image == "" {
			opts.Image = cfg.VM.LinuxImage
		}

		orch := orchestrator.New(cloud, cfg.Agent.ScriptsDir)

		logging.Logger().Info("Provisioning agent host",
			zap.String("name", provisionName),
			zap.String("pool", cfg.Agent.Pool),
			zap.String("platform", string(platform)))

		ctx := context.Background()
		result, err := orch.Provision(ctx, req, opts, secrets)
		record := inventory.HostRecord{
			Name:          provisionName,
			AgentName:     provisionAgentName,
			Pool:          cfg.Agent.Pool,
			Provider:      string(config.ProviderAzure),
			ResourceGroup: provisionResourceGroup,
		}
		if err != nil {
			record.Status = "failed"
			record.Error = err.Error()
			saveRecord(cfg.InventoryPath, record)
			logging.Logger().Fatal("Provisioning failed", zap.Error(err))
		}

		record.Status = "provisioned"
		record.PublicIP = result.PublicIP
		record.PrivateIP = result.PrivateIP
		record.AdminUsername = result.AdminUsername
		saveRecord(cfg.InventoryPath, record)

		fmt.Printf("Agent host provisioned\n")
		fmt.Printf("  Name:       %s\n", provisionName)
		fmt.Printf("  Agent:      %s\n", provisionAgentName)
		fmt.Printf("  Pool:       %s\n", cfg.Agent.Pool)
		if result.PublicIP != "" {
			fmt.Printf("  Public IP:  %s\n", result.PublicIP)
		}
		fmt.Printf("  Private IP: %s\n", result.PrivateIP)
		fmt.Printf("  User:       %s\n", result.AdminUsername)

		if provisionVerify {
			client := azdo.NewClient(cfg.Agent.OrganizationURL, token)
			agent, err := client.WaitForAgentOnline(ctx, cfg.Agent.Pool, provisionAgentName, 30, 10*time.Second)
			if err != nil {
				logging.Logger().Fatal("Agent did not come online", zap.Error(err))
			}
			fmt.Printf("  Status:     %s\n", agent.Status)
		}
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)

	provisionCmd.Flags().StringVarP(&provisionName, "name", "n", "", "VM name (generated when omitted)")
	provisionCmd.Flags().StringVar(&provisionAgentName, "agent-name", "", "Agent name (defaults to the VM name)")
	provisionCmd.Flags().StringVarP(&provisionResourceGroup, "resource-group", "g", "", "Azure resource group")
	provisionCmd.Flags().StringVarP(&provisionLocation, "location", "l", "", "Azure location (defaults to vm.location)")
	provisionCmd.Flags().StringVar(&provisionPlatform, "platform", "linux", "Host platform: linux or windows")
	provisionCmd.Flags().StringVar(&provisionSize, "size", "", "VM size (defaults to vm.size)")
	provisionCmd.Flags().StringVar(&provisionImage, "image", "", "Image URN or resource ID (defaults per platform)")
	provisionCmd.Flags().StringVar(&provisionVNet, "vnet", "", "Existing virtual network to attach to")
	provisionCmd.Flags().StringVar(&provisionSubnet, "subnet", "", "Subnet within --vnet")
	provisionCmd.Flags().StringVar(&provisionPublicIP, "public-ip", "", "Assign a public IP: true or false (default true)")
	provisionCmd.Flags().Int32Var(&provisionDataDiskGB, "data-disk-gb", 0, "Optional data disk size in GB")
	provisionCmd.Flags().BoolVar(&provisionVerify, "verify", false, "Wait until the agent reports online in the pool")
}

func saveRecord(path string, record inventory.HostRecord) {
	inv, err := inventory.Load(path)
	if err != nil {
		logging.Logger().Warn("Failed to load inventory", zap.Error(err))
		return
	}
	inv.Upsert(record)
	if err := inv.Save(path); err != nil {
		logging.Logger().Warn("Failed to save inventory", zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
