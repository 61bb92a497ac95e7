package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Provider identifies a cloud provisioner backend
type Provider string

const (
	ProviderAzure        Provider = "azure"
	ProviderAWS          Provider = "aws"
	ProviderDigitalOcean Provider = "digitalocean"
	ProviderGCP          Provider = "gcp"
	ProviderYandexCloud  Provider = "yandex_cloud"
)

// AzureConfig holds Azure connection parameters
type AzureConfig struct {
	SubscriptionID string `yaml:"subscription_id"`
}

// AWSConfig holds AWS connection parameters
type AWSConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// DOConfig holds DigitalOcean connection parameters
type DOConfig struct {
	Token string `yaml:"token"`
}

// GCPConfig holds Google Cloud connection parameters
type GCPConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// YandexConfig holds Yandex Cloud connection parameters
type YandexConfig struct {
	IAMToken string `yaml:"iam_token"`
	FolderID string `yaml:"folder_id"`
}

// ProvisionerConfig selects and configures the cloud backend (discriminated
// union keyed on Type)
type ProvisionerConfig struct {
	Type Provider `yaml:"type"`

	Azure        *AzureConfig  `yaml:"azure,omitempty"`
	AWS          *AWSConfig    `yaml:"aws,omitempty"`
	DigitalOcean *DOConfig     `yaml:"digitalocean,omitempty"`
	GCP          *GCPConfig    `yaml:"gcp,omitempty"`
	YandexCloud  *YandexConfig `yaml:"yandex_cloud,omitempty"`

	// Host defaults for SSH-bootstrapped clouds
	DefaultZone     string `yaml:"default_zone"`
	DefaultImage    string `yaml:"default_image"`
	DefaultUsername string `yaml:"default_username"`
	DefaultCores    int    `yaml:"default_cores"`
	DefaultMemory   int64  `yaml:"default_memory"`    // in GB
	DefaultDiskSize int64  `yaml:"default_disk_size"` // in GB
}

// AgentConfig holds the task-queue service connection and installer parameters
type AgentConfig struct {
	OrganizationURL string `yaml:"organization_url"`
	Pool            string `yaml:"pool"`
	Version         string `yaml:"version"`
	InstallHome     string `yaml:"install_home"`
	WorkDir         string `yaml:"work_dir"`

	// Directory holding the vendor installer wrapper scripts
	ScriptsDir string `yaml:"scripts_dir"`
}

// VMConfig holds default VM parameters for the Azure run-command path
type VMConfig struct {
	Location      string            `yaml:"location"`
	Size          string            `yaml:"size"`
	LinuxImage    string            `yaml:"linux_image"`
	WindowsImage  string            `yaml:"windows_image"`
	AdminUsername string            `yaml:"admin_username"`
	DataDiskGB    int32             `yaml:"data_disk_gb"`
	Tags          map[string]string `yaml:"tags"`
}

// EtcdConfig holds optional etcd endpoints for shared SSH key storage
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"`
}

// BatchConfig bounds concurrent provisioning runs
type BatchConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

// Config contains application configuration
type Config struct {
	Provisioner ProvisionerConfig `yaml:"provisioner"`
	Agent       AgentConfig       `yaml:"agent"`
	VM          VMConfig          `yaml:"vm"`
	Etcd        EtcdConfig        `yaml:"etcd"`
	Batch       BatchConfig       `yaml:"batch"`

	// Where the operator-facing host inventory is written
	InventoryPath string `yaml:"inventory_path"`
}

// Load loads configuration from the YAML file, applies environment overrides
// and validates required parameters. The resulting struct is the only
// configuration surface; core logic never reads the environment itself.
func Load() (*Config, error) {
	config := &Config{
		Provisioner: ProvisionerConfig{
			Type:            ProviderAzure,
			DefaultZone:     "fra1",
			DefaultUsername: "agentforge",
			DefaultCores:    2,
			DefaultMemory:   4,  // 4GB
			DefaultDiskSize: 40, // 40GB
		},
		Agent: AgentConfig{
			Version:     "4.258.1",
			InstallHome: "/opt/azagent",
			WorkDir:     "_work",
			ScriptsDir:  "scripts",
		},
		VM: VMConfig{
			Location:      "eastus",
			Size:          "Standard_DS2_v2",
			LinuxImage:    "Canonical:ubuntu-24_04-lts:server:latest",
			WindowsImage:  "MicrosoftWindowsServer:WindowsServer:2022-datacenter-g2:latest",
			AdminUsername: "azureagent",
			Tags:          map[string]string{"managed-by": "agentforge"},
		},
		Batch: BatchConfig{
			MaxWorkers: 5,
		},
		InventoryPath: "agentforge-inventory.json",
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "agentforge.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %v", err)
		}
	}

	// Expand environment variables in string fields
	config.Agent.OrganizationURL = os.ExpandEnv(config.Agent.OrganizationURL)
	config.Agent.Pool = os.ExpandEnv(config.Agent.Pool)
	config.Agent.ScriptsDir = os.ExpandEnv(config.Agent.ScriptsDir)
	config.VM.Location = os.ExpandEnv(config.VM.Location)
	if config.Provisioner.Azure != nil {
		config.Provisioner.Azure.SubscriptionID = os.ExpandEnv(config.Provisioner.Azure.SubscriptionID)
	}
	if config.Provisioner.YandexCloud != nil {
		config.Provisioner.YandexCloud.IAMToken = os.ExpandEnv(config.Provisioner.YandexCloud.IAMToken)
		config.Provisioner.YandexCloud.FolderID = os.ExpandEnv(config.Provisioner.YandexCloud.FolderID)
	}

	// Override with environment variables if set
	if orgURL := os.Getenv("AZP_URL"); orgURL != "" {
		config.Agent.OrganizationURL = orgURL
	}
	if pool := os.Getenv("AZP_POOL"); pool != "" {
		config.Agent.Pool = pool
	}
	if version := os.Getenv("AZP_AGENT_VERSION"); version != "" {
		config.Agent.Version = version
	}
	if home := os.Getenv("AZP_INSTALL_HOME"); home != "" {
		config.Agent.InstallHome = home
	}
	if workDir := os.Getenv("AZP_WORK_DIR"); workDir != "" {
		config.Agent.WorkDir = workDir
	}
	if sub := os.Getenv("AZURE_SUBSCRIPTION_ID"); sub != "" {
		if config.Provisioner.Azure == nil {
			config.Provisioner.Azure = &AzureConfig{}
		}
		config.Provisioner.Azure.SubscriptionID = sub
	}

	// Validate required parameters
	if config.Agent.OrganizationURL == "" {
		return nil, fmt.Errorf("organization URL is required (set agent.organization_url in config file or AZP_URL environment variable)")
	}
	if config.Agent.Pool == "" {
		return nil, fmt.Errorf("pool name is required (set agent.pool in config file or AZP_POOL environment variable)")
	}

	return config, nil
}
