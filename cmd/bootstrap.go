package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"agentforge/internal/bootstrap"
	"agentforge/internal/config"
	"agentforge/internal/credentials"
	"agentforge/internal/inventory"
	"agentforge/internal/logging"
	"agentforge/internal/provisioning"
	"agentforge/internal/sshkeys"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	bootstrapKeyFile   string
	bootstrapAgentName string
	bootstrapCreate    bool
)

// bootstrapCmd represents the bootstrap command
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap [user@host]",
	Short: "Register an agent on a host reached over SSH",
	Long: `Install and register a build agent over SSH. Works against an existing
host (bootstrap user@host --key ~/.ssh/id_rsa) or, with --create, against
a fresh instance on the configured cloud provisioner.

Providers without a run-command primitive (AWS, DigitalOcean, GCP,
Yandex Cloud) use this path instead of the provision command.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			logging.Logger().Fatal("Failed to load configuration", zap.Error(err))
		}

		resolver := credentials.NewResolver()
		token, err := resolver.Resolve("AZP_TOKEN")
		if err != nil {
			logging.Logger().Fatal("Failed to resolve access token", zap.Error(err))
		}

		ctx := context.Background()
		var target bootstrap.Target
		var record inventory.HostRecord

		if bootstrapCreate {
			target, record = createInstance(ctx, cfg)
		} else {
			if len(args) == 0 {
				logging.Logger().Fatal("Target is required: bootstrap user@host or --create")
			}
			user, host, err := splitTarget(args[0])
			if err != nil {
				logging.Logger().Fatal("Invalid target", zap.Error(err))
			}
			if bootstrapKeyFile == "" {
				logging.Logger().Fatal("Private key file is required (--key)")
			}
			key, err := os.ReadFile(bootstrapKeyFile)
			if err != nil {
				logging.Logger().Fatal("Failed to read private key", zap.Error(err))
			}
			target = bootstrap.Target{Host: host, User: user, PrivateKey: string(key)}
			record = inventory.HostRecord{
				Name:     host,
				Pool:     cfg.Agent.Pool,
				Provider: "ssh",
				PublicIP: host,
			}
		}

		agentName := bootstrapAgentName
		if agentName == "" {
			agentName = record.Name
		}
		record.AgentName = agentName
		record.AdminUsername = target.User

		params := bootstrap.Params{
			OrganizationURL: cfg.Agent.OrganizationURL,
			PoolName:        cfg.Agent.Pool,
			AgentName:       agentName,
			AgentVersion:    cfg.Agent.Version,
			InstallHome:     cfg.Agent.InstallHome,
			WorkDir:         cfg.Agent.WorkDir,
			AccessToken:     token,
			ScriptsDir:      cfg.Agent.ScriptsDir,
		}

		output, err := bootstrap.New().Bootstrap(target, params)
		if err != nil {
			record.Status = "failed"
			record.Error = err.Error()
			saveRecord(cfg.InventoryPath, record)
			logging.Logger().Fatal("Bootstrap failed", zap.Error(err))
		}
		record.Status = "provisioned"
		saveRecord(cfg.InventoryPath, record)

		logging.Logger().Debug("Bootstrap output", zap.String("output", output))
		fmt.Printf("Agent %s registered into pool %s on %s\n", agentName, cfg.Agent.Pool, target.Host)
	},
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)

	bootstrapCmd.Flags().StringVarP(&bootstrapKeyFile, "key", "k", "", "Path to the SSH private key for an existing host")
	bootstrapCmd.Flags().StringVar(&bootstrapAgentName, "agent-name", "", "Agent name (defaults to the host name)")
	bootstrapCmd.Flags().BoolVar(&bootstrapCreate, "create", false, "Create a fresh instance on the configured provisioner first")
}

// createInstance provisions a host on the configured SSH cloud and returns a
// bootstrap target for it
func createInstance(ctx context.Context, cfg *config.Config) (bootstrap.Target, inventory.HostRecord) {
	keyProvider := sshkeys.NewKeyProvider(cfg.Etcd.Endpoints)
	defer keyProvider.Close()

	keyPair, err := keyProvider.GetOrCreate(ctx)
	if err != nil {
		logging.Logger().Fatal("Failed to obtain SSH key pair", zap.Error(err))
	}

	provisioner, err := provisioning.NewInstanceProvisioner(ctx, cfg.Provisioner)
	if err != nil {
		logging.Logger().Fatal("Failed to create provisioner", zap.Error(err))
	}
	defaults := provisioning.GetHostDefaults(cfg.Provisioner)

	name := fmt.Sprintf("agent-%s", uuid.NewString()[:8])
	spec := provisioning.HostSpec{
		Name:         name,
		Cores:        defaults.Cores,
		Memory:       defaults.Memory,
		DiskSize:     defaults.DiskSize,
		ImageID:      defaults.Image,
		Zone:         defaults.Zone,
		SSHPublicKey: keyPair.PublicKey,
		Username:     defaults.Username,
		Tags:         cfg.VM.Tags,
	}

	logging.Logger().Info("Creating instance",
		zap.String("name", name),
		zap.String("provider", string(cfg.Provisioner.Type)))

	info, err := provisioner.Create(ctx, spec)
	if err != nil {
		logging.Logger().Fatal("Failed to create instance", zap.Error(err))
	}

	logging.Logger().Info("Instance created",
		zap.String("id", info.ID),
		zap.String("ip", info.IP))

	target := bootstrap.Target{
		Host:       info.IP,
		User:       defaults.Username,
		PrivateKey: keyPair.PrivateKey,
	}
	record := inventory.HostRecord{
		Name:       name,
		Pool:       cfg.Agent.Pool,
		Provider:   string(cfg.Provisioner.Type),
		InstanceID: info.ID,
		PublicIP:   info.IP,
	}
	return target, record
}

func splitTarget(target string) (user, host string, err error) {
	parts := strings.SplitN(target, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected user@host, got %q", target)
	}
	return parts[0], parts[1], nil
}
