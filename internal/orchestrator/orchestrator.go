// Package orchestrator implements the remote bootstrap sequence that turns a
// freshly created virtual machine into a registered, running build agent:
// validate, ensure resource group, create VM, template + encode the installer,
// trigger out-of-band execution, report connectivity endpoints.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"agentforge/internal/logging"
	"agentforge/internal/provisioning"
	"agentforge/internal/remotescript"
	"agentforge/internal/sshkeys"

	"go.uber.org/zap"
)

// ProvisionRequest identifies the agent host to create and the pool to
// register it into. Immutable once constructed.
type ProvisionRequest struct {
	OrganizationURL string
	PoolName        string
	ResourceGroup   string
	Location        string
	VMName          string
	AgentName       string
	Platform        provisioning.Platform
}

// ProvisionOptions overrides defaults. Every field is independently optional.
type ProvisionOptions struct {
	Size          string // default Standard_DS2_v2
	Image         string // default per platform
	AdminUsername string // default azureagent

	// Network attachment: SubnetName requires VNetName
	VNetName   string
	SubnetName string

	// PublicIP is a strict boolean string: "true", "false" or empty
	// (empty means true)
	PublicIP string

	DataDiskGB int32
	Tags       map[string]string

	// Installer parameters, substituted into the remote script
	AgentVersion string // default 4.258.1
	InstallHome  string // default /opt/azagent (linux), C:\azagent (windows)
	WorkDir      string // default _work
}

// Secrets holds the credentials for a single run. Resolved once, used once,
// never persisted by the orchestrator.
type Secrets struct {
	AccessToken   string
	AdminPassword string // windows only
}

// ProvisionResult reports the connectivity endpoints and raw remote output of
// a completed run
type ProvisionResult struct {
	PublicIP      string
	PrivateIP     string
	AdminUsername string
	RemoteOutput  string
}

const (
	defaultSize             = "Standard_DS2_v2"
	defaultLinuxImage       = "Canonical:ubuntu-24_04-lts:server:latest"
	defaultWindowsImage     = "MicrosoftWindowsServer:WindowsServer:2022-datacenter-g2:latest"
	defaultAdminUsername    = "azureagent"
	defaultAgentVersion     = "4.258.1"
	defaultLinuxInstallHome = "/opt/azagent"
	defaultWinInstallHome   = `C:\azagent`
	defaultWorkDir          = "_work"

	linuxInstallerScript   = "install-agent.sh"
	windowsInstallerScript = "install-agent.ps1"
)

// Orchestrator drives a single provisioning run against a cloud client
type Orchestrator struct {
	cloud      provisioning.CloudClient
	scriptsDir string

	// Key generation is injectable for tests
	newKeyPair func() (*sshkeys.KeyPair, error)
}

// New creates an Orchestrator. scriptsDir is where the companion installer
// scripts are expected to live.
func New(cloud provisioning.CloudClient, scriptsDir string) *Orchestrator {
	return &Orchestrator{
		cloud:      cloud,
		scriptsDir: scriptsDir,
		newKeyPair: sshkeys.GenerateKeyPair,
	}
}

// Provision runs the full bootstrap sequence. Any failure aborts the
// remaining steps; no compensating teardown is performed, a VM created before
// a later failure stays in place for the operator to reconcile.
func (o *Orchestrator) Provision(ctx context.Context, req ProvisionRequest, opts ProvisionOptions, secrets Secrets) (*ProvisionResult, error) {
	// Step 1: validate before any remote call
	if err := validate(req, opts, secrets); err != nil {
		return nil, err
	}
	opts = withDefaults(opts, req.Platform)

	log := logging.Logger().With(
		zap.String("resource_group", req.ResourceGroup),
		zap.String("vm_name", req.VMName),
		zap.String("agent_name", req.AgentName),
		zap.String("pool", req.PoolName))

	// Step 2: idempotent resource group create-or-reuse
	if err := o.cloud.EnsureResourceGroup(ctx, req.ResourceGroup, req.Location, opts.Tags); err != nil {
		return nil, fmt.Errorf("%w: resource group %s: %v", ErrProvisioningFailed, req.ResourceGroup, err)
	}

	// Step 3: create the VM, blocking on the cloud's own completion signal
	vmSpec, err := o.buildVMSpec(req, opts, secrets)
	if err != nil {
		return nil, err
	}
	info, err := o.cloud.CreateVM(ctx, vmSpec)
	if err != nil {
		return nil, fmt.Errorf("%w: vm create %s: %v", ErrProvisioningFailed, req.VMName, err)
	}

	// Step 4: endpoints were extracted by the client; absence of either
	// address is tolerated

	// Step 5: build the remote script
	script, err := o.buildRemoteScript(req, opts, secrets)
	if err != nil {
		return nil, err
	}

	// Step 6: out-of-band execution on the VM. Remote failure is surfaced
	// verbatim and is fatal; installer-specific failures are opaque here.
	log.Info("Executing bootstrap script on VM")
	runResult, err := o.cloud.RunCommand(ctx, req.ResourceGroup, req.VMName, provisioning.EngineFor(req.Platform), script)
	if err != nil {
		return nil, fmt.Errorf("%w: remote execution on %s: %v", ErrProvisioningFailed, req.VMName, err)
	}

	log.Info("Agent host provisioned",
		zap.String("public_ip", info.PublicIP),
		zap.String("private_ip", info.PrivateIP),
		zap.String("remote_output", logging.Truncate(runResult.Message)))

	// Step 7: report
	return &ProvisionResult{
		PublicIP:      info.PublicIP,
		PrivateIP:     info.PrivateIP,
		AdminUsername: vmSpec.AdminUsername,
		RemoteOutput:  runResult.Message,
	}, nil
}

// validate enforces the pre-flight invariants. It fails with field-level
// messages and guarantees zero remote calls on violation.
func validate(req ProvisionRequest, opts ProvisionOptions, secrets Secrets) error {
	switch req.Platform {
	case provisioning.PlatformLinux, provisioning.PlatformWindows:
	default:
		return fmt.Errorf("%w: platform must be linux or windows, got %q", ErrInvalidConfiguration, req.Platform)
	}

	if req.OrganizationURL == "" {
		return fmt.Errorf("%w: organization URL is required", ErrInvalidConfiguration)
	}
	if req.PoolName == "" {
		return fmt.Errorf("%w: pool name is required", ErrInvalidConfiguration)
	}
	if req.ResourceGroup == "" {
		return fmt.Errorf("%w: resource group is required", ErrInvalidConfiguration)
	}
	if req.Location == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidConfiguration)
	}
	if req.VMName == "" {
		return fmt.Errorf("%w: vm name is required", ErrInvalidConfiguration)
	}
	if req.AgentName == "" {
		return fmt.Errorf("%w: agent name is required", ErrInvalidConfiguration)
	}

	if secrets.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", ErrMissingCredential)
	}
	if req.Platform == provisioning.PlatformWindows && secrets.AdminPassword == "" {
		return fmt.Errorf("%w: administrator password is required for windows hosts", ErrMissingCredential)
	}

	if opts.SubnetName != "" && opts.VNetName == "" {
		return fmt.Errorf("%w: subnet name requires a vnet name", ErrInvalidConfiguration)
	}

	switch opts.PublicIP {
	case "", "true", "false":
	default:
		return fmt.Errorf("%w: public ip must be exactly \"true\" or \"false\", got %q", ErrInvalidConfiguration, opts.PublicIP)
	}

	return nil
}

func withDefaults(opts ProvisionOptions, platform provisioning.Platform) ProvisionOptions {
	if opts.Size == "" {
		opts.Size = defaultSize
	}
	if opts.Image == "" {
		if platform == provisioning.PlatformWindows {
			opts.Image = defaultWindowsImage
		} else {
			opts.Image = defaultLinuxImage
		}
	}
	if opts.AdminUsername == "" {
		opts.AdminUsername = defaultAdminUsername
	}
	if opts.PublicIP == "" {
		opts.PublicIP = "true"
	}
	if opts.AgentVersion == "" {
		opts.AgentVersion = defaultAgentVersion
	}
	if opts.InstallHome == "" {
		if platform == provisioning.PlatformWindows {
			opts.InstallHome = defaultWinInstallHome
		} else {
			opts.InstallHome = defaultLinuxInstallHome
		}
	}
	if opts.WorkDir == "" {
		opts.WorkDir = defaultWorkDir
	}
	return opts
}

// buildVMSpec assembles the VM creation spec. Windows hosts authenticate with
// the admin password; linux hosts get a freshly generated key pair.
func (o *Orchestrator) buildVMSpec(req ProvisionRequest, opts ProvisionOptions, secrets Secrets) (provisioning.VMSpec, error) {
	spec := provisioning.VMSpec{
		ResourceGroup: req.ResourceGroup,
		Name:          req.VMName,
		Location:      req.Location,
		Platform:      req.Platform,
		Image:         opts.Image,
		Size:          opts.Size,
		AdminUsername: opts.AdminUsername,
		VNetName:      opts.VNetName,
		SubnetName:    opts.SubnetName,
		PublicIP:      opts.PublicIP == "true",
		DataDiskGB:    opts.DataDiskGB,
		Tags:          opts.Tags,
	}

	if req.Platform == provisioning.PlatformWindows {
		spec.AdminPassword = secrets.AdminPassword
		return spec, nil
	}

	keyPair, err := o.newKeyPair()
	if err != nil {
		return provisioning.VMSpec{}, fmt.Errorf("%w: ssh key generation: %v", ErrProvisioningFailed, err)
	}
	spec.SSHPublicKey = keyPair.PublicKey
	return spec, nil
}

// buildRemoteScript reads the companion installer script, encodes it and
// materializes the platform bootstrap template. The admin password is never a
// slot; it is supplied at VM-creation time only.
func (o *Orchestrator) buildRemoteScript(req ProvisionRequest, opts ProvisionOptions, secrets Secrets) (string, error) {
	name := linuxInstallerScript
	if req.Platform == provisioning.PlatformWindows {
		name = windowsInstallerScript
	}
	path := filepath.Join(o.scriptsDir, name)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: installer script %s not found", ErrPrerequisiteMissing, path)
		}
		return "", fmt.Errorf("%w: installer script %s: %v", ErrPrerequisiteMissing, path, err)
	}

	slots := remotescript.Slots{
		InstallerPayload: remotescript.EncodeInstaller(raw),
		AccessToken:      secrets.AccessToken,
		AgentVersion:     opts.AgentVersion,
		InstallHome:      opts.InstallHome,
		WorkDir:          opts.WorkDir,
		OrganizationURL:  req.OrganizationURL,
		PoolName:         req.PoolName,
		AgentName:        req.AgentName,
	}
	return remotescript.ForPlatform(req.Platform).Render(slots), nil
}
