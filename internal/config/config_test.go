package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigValidation(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "agentforge.yaml")

	// Config file missing the required organization URL and pool
	tempConfig := `vm:
  location: "westeurope"
agent:
  version: "4.258.1"
`
	if err := os.WriteFile(configPath, []byte(tempConfig), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	t.Setenv("CONFIG_PATH", configPath)
	t.Setenv("AZP_URL", "")
	t.Setenv("AZP_POOL", "")

	cfg, err := Load()
	if err == nil {
		t.Error("Expected error for missing organization URL, but got none")
	}
	if cfg != nil {
		t.Error("Expected config to be nil when validation fails")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "agentforge.yaml")

	tempConfig := `agent:
  organization_url: "https://dev.azure.com/from-file"
  pool: "FilePool"
`
	if err := os.WriteFile(configPath, []byte(tempConfig), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	t.Setenv("CONFIG_PATH", configPath)
	t.Setenv("AZP_URL", "https://dev.azure.com/from-env")
	t.Setenv("AZP_POOL", "EnvPool")
	t.Setenv("AZURE_SUBSCRIPTION_ID", "sub-123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Agent.OrganizationURL != "https://dev.azure.com/from-env" {
		t.Errorf("OrganizationURL = %q, want env override", cfg.Agent.OrganizationURL)
	}
	if cfg.Agent.Pool != "EnvPool" {
		t.Errorf("Pool = %q, want env override", cfg.Agent.Pool)
	}
	if cfg.Provisioner.Azure == nil || cfg.Provisioner.Azure.SubscriptionID != "sub-123" {
		t.Errorf("Azure subscription not taken from environment")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "agentforge.yaml")

	tempConfig := `agent:
  organization_url: "https://dev.azure.com/contoso"
  pool: "SelfHostedPool"
`
	if err := os.WriteFile(configPath, []byte(tempConfig), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	t.Setenv("CONFIG_PATH", configPath)
	t.Setenv("AZP_URL", "")
	t.Setenv("AZP_POOL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.VM.Location != "eastus" {
		t.Errorf("default location = %q, want eastus", cfg.VM.Location)
	}
	if cfg.Agent.InstallHome != "/opt/azagent" {
		t.Errorf("default install home = %q, want /opt/azagent", cfg.Agent.InstallHome)
	}
	if cfg.Batch.MaxWorkers != 5 {
		t.Errorf("default max workers = %d, want 5", cfg.Batch.MaxWorkers)
	}
	if cfg.Provisioner.Type != ProviderAzure {
		t.Errorf("default provisioner = %q, want azure", cfg.Provisioner.Type)
	}
}
