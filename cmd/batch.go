package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"agentforge/internal/config"
	"agentforge/internal/credentials"
	"agentforge/internal/inventory"
	"agentforge/internal/logging"
	"agentforge/internal/orchestrator"
	"agentforge/internal/provisioning"

	"github.com/alitto/pond/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

var (
	batchManifestFile string
	batchWorkers      int
)

// batchManifest describes a set of agent hosts to provision in one run
type batchManifest struct {
	ResourceGroup string `yaml:"resource_group"`
	Location      string `yaml:"location"`

	Hosts []batchHost `yaml:"hosts"`
}

type batchHost struct {
	Name       string            `yaml:"name"`
	AgentName  string            `yaml:"agent_name"`
	Platform   string            `yaml:"platform"`
	Size       string            `yaml:"size"`
	Image      string            `yaml:"image"`
	VNetName   string            `yaml:"vnet"`
	SubnetName string            `yaml:"subnet"`
	PublicIP   string            `yaml:"public_ip"`
	DataDiskGB int32             `yaml:"data_disk_gb"`
	Tags       map[string]string `yaml:"tags"`
}

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [manifest file]",
	Short: "Provision multiple agent hosts from a manifest",
	Long: `Read a YAML manifest describing agent hosts and provision them
concurrently with a bounded worker pool. Hosts fail independently; the
run continues past individual failures and reports a summary at the end.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if batchManifestFile == "" {
			if len(args) > 0 {
				batchManifestFile = args[0]
			} else {
				logging.Logger().Fatal("Manifest file is required")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			logging.Logger().Fatal("Failed to load configuration", zap.Error(err))
		}

		content, err := os.ReadFile(batchManifestFile)
		if err != nil {
			logging.Logger().Fatal("Failed to read manifest file", zap.Error(err))
		}
		var manifest batchManifest
		if err := yaml.Unmarshal(content, &manifest); err != nil {
			logging.Logger().Fatal("Failed to parse manifest file", zap.Error(err))
		}
		if manifest.ResourceGroup == "" {
			logging.Logger().Fatal("Manifest must set resource_group")
		}
		if len(manifest.Hosts) == 0 {
			logging.Logger().Fatal("Manifest lists no hosts")
		}

		resolver := credentials.NewResolver()
		token, err := resolver.Resolve("AZP_TOKEN")
		if err != nil {
			logging.Logger().Fatal("Failed to resolve access token", zap.Error(err))
		}
		adminPassword := ""
		for _, host := range manifest.Hosts {
			if provisioning.Platform(strings.ToLower(host.Platform)) == provisioning.PlatformWindows {
				adminPassword, err = resolver.Resolve("WIN_ADMIN_PASSWORD")
				if err != nil {
					logging.Logger().Fatal("Failed to resolve admin password", zap.Error(err))
				}
				break
			}
		}

		if cfg.Provisioner.Azure == nil || cfg.Provisioner.Azure.SubscriptionID == "" {
			logging.Logger().Fatal("Azure subscription is required (set provisioner.azure.subscription_id or AZURE_SUBSCRIPTION_ID)")
		}
		cloud, err := provisioning.NewAzureClient(cfg.Provisioner.Azure.SubscriptionID)
		if err != nil {
			logging.Logger().Fatal("Failed to create Azure client", zap.Error(err))
		}
		orch := orchestrator.New(cloud, cfg.Agent.ScriptsDir)

		workers := batchWorkers
		if workers <= 0 {
			workers = cfg.Batch.MaxWorkers
		}
		location := manifest.Location
		if location == "" {
			location = cfg.VM.Location
		}

		inv, err := inventory.Load(cfg.InventoryPath)
		if err != nil {
			logging.Logger().Fatal("Failed to load inventory", zap.Error(err))
		}

		logging.Logger().Info("Starting batch provisioning",
			zap.Int("hosts", len(manifest.Hosts)),
			zap.Int("workers", workers))

		var mu sync.Mutex
		failed := 0
		started := time.Now()
		pool := pond.NewPool(workers)
		ctx := context.Background()

		for _, host := range manifest.Hosts {
			host := host
			pool.Submit(func() {
				record := provisionBatchHost(ctx, orch, cfg, manifest, host, location, token, adminPassword)
				mu.Lock()
				defer mu.Unlock()
				inv.Upsert(record)
				if record.Status == "failed" {
					failed++
				}
			})
		}
		pool.StopAndWait()

		if err := inv.Save(cfg.InventoryPath); err != nil {
			logging.Logger().Warn("Failed to save inventory", zap.Error(err))
		}

		fmt.Printf("Batch finished in %s: %d succeeded, %d failed\n",
			time.Since(started).Round(time.Second), len(manifest.Hosts)-failed, failed)
		if failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchManifestFile, "manifest", "f", "", "Path to manifest YAML file")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Concurrent provisioning runs (defaults to batch.max_workers)")
}

func provisionBatchHost(ctx context.Context, orch *orchestrator.Orchestrator, cfg *config.Config, manifest batchManifest, host batchHost, location, token, adminPassword string) inventory.HostRecord {
	platform := provisioning.Platform(strings.ToLower(host.Platform))
	if host.Platform == "" {
		platform = provisioning.PlatformLinux
	}
	agentName := host.AgentName
	if agentName == "" {
		agentName = host.Name
	}

	req := orchestrator.ProvisionRequest{
		OrganizationURL: cfg.Agent.OrganizationURL,
		PoolName:        cfg.Agent.Pool,
		ResourceGroup:   manifest.ResourceGroup,
		Location:        location,
		VMName:          host.Name,
		AgentName:       agentName,
		Platform:        platform,
	}
	opts := orchestrator.ProvisionOptions{
		Size:          firstNonEmpty(host.Size, cfg.VM.Size),
		Image:         host.Image,
		AdminUsername: cfg.VM.AdminUsername,
		VNetName:      host.VNetName,
		SubnetName:    host.SubnetName,
		PublicIP:      host.PublicIP,
		DataDiskGB:    host.DataDiskGB,
		Tags:          mergeTags(cfg.VM.Tags, host.Tags),
		AgentVersion:  cfg.Agent.Version,
		InstallHome:   cfg.Agent.InstallHome,
		WorkDir:       cfg.Agent.WorkDir,
	}
	if opts.Image == "" && platform == provisioning.PlatformWindows {
		opts.Image = cfg.VM.WindowsImage
	} else if opts.Image == "" {
		opts.Image = cfg.VM.LinuxImage
	}

	secrets := orchestrator.Secrets{AccessToken: token}
	if platform == provisioning.PlatformWindows {
		secrets.AdminPassword = adminPassword
	}

	record := inventory.HostRecord{
		Name:          host.Name,
		AgentName:     agentName,
		Pool:          cfg.Agent.Pool,
		Provider:      string(config.ProviderAzure),
		ResourceGroup: manifest.ResourceGroup,
	}

	result, err := orch.Provision(ctx, req, opts, secrets)
	if err != nil {
		logging.Logger().Error("Host provisioning failed",
			zap.String("name", host.Name),
			zap.Error(err))
		record.Status = "failed"
		record.Error = err.Error()
		return record
	}

	logging.Logger().Info("Host provisioned",
		zap.String("name", host.Name),
		zap.String("public_ip", result.PublicIP))
	record.Status = "provisioned"
	record.PublicIP = result.PublicIP
	record.PrivateIP = result.PrivateIP
	record.AdminUsername = result.AdminUsername
	return record
}

func mergeTags(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
