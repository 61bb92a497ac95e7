package provisioning

import (
	"context"
	"fmt"

	"agentforge/internal/config"
)

// NewInstanceProvisioner creates an instance provisioner for the configured
// cloud (factory pattern). Azure is not served here: agent hosts on Azure are
// bootstrapped through the run-command CloudClient, not over SSH.
func NewInstanceProvisioner(ctx context.Context, cfg config.ProvisionerConfig) (InstanceProvisioner, error) {
	switch cfg.Type {
	case config.ProviderAWS:
		if cfg.AWS == nil {
			return nil, fmt.Errorf("aws config is nil")
		}
		return NewAWSProvisioner(ctx, cfg.AWS.Region, cfg.AWS.AccessKey, cfg.AWS.SecretKey)

	case config.ProviderDigitalOcean:
		if cfg.DigitalOcean == nil {
			return nil, fmt.Errorf("digitalocean config is nil")
		}
		return NewDOProvisioner(cfg.DigitalOcean.Token)

	case config.ProviderGCP:
		if cfg.GCP == nil {
			return nil, fmt.Errorf("gcp config is nil")
		}
		return NewGCPProvisioner(ctx, cfg.GCP.ProjectID, cfg.GCP.CredentialsFile)

	case config.ProviderYandexCloud:
		if cfg.YandexCloud == nil {
			return nil, fmt.Errorf("yandex_cloud config is nil")
		}
		return NewYcProvisioner(cfg.YandexCloud.IAMToken, cfg.YandexCloud.FolderID)

	default:
		return nil, fmt.Errorf("unsupported provisioner type: %s", cfg.Type)
	}
}

// HostDefaults contains default host parameters extracted from config
type HostDefaults struct {
	Zone     string
	Image    string
	Username string
	Cores    int
	Memory   int64
	DiskSize int64
}

// GetHostDefaults extracts host defaults from provisioner config
func GetHostDefaults(cfg config.ProvisionerConfig) HostDefaults {
	defaults := HostDefaults{
		Zone:     cfg.DefaultZone,
		Image:    cfg.DefaultImage,
		Username: cfg.DefaultUsername,
		Cores:    cfg.DefaultCores,
		Memory:   cfg.DefaultMemory,
		DiskSize: cfg.DefaultDiskSize,
	}
	if defaults.Username == "" {
		defaults.Username = "agentforge"
	}
	if defaults.Cores == 0 {
		defaults.Cores = 2
	}
	if defaults.Memory == 0 {
		defaults.Memory = 4
	}
	if defaults.DiskSize == 0 {
		defaults.DiskSize = 40
	}
	return defaults
}
