package provisioning

import "context"

// Platform identifies the operating system family of an agent host
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "windows"
)

// Engine selects the interpreter the cloud run-command primitive uses
type Engine string

const (
	EngineShell      Engine = "RunShellScript"
	EnginePowerShell Engine = "RunPowerShellScript"
)

// EngineFor returns the run-command engine matching a platform
func EngineFor(platform Platform) Engine {
	if platform == PlatformWindows {
		return EnginePowerShell
	}
	return EngineShell
}

// VMSpec represents the specification for creating an agent host VM
type VMSpec struct {
	ResourceGroup string
	Name          string
	Location      string
	Platform      Platform
	Image         string
	Size          string

	// Authentication: password for windows, SSH public key for linux
	AdminUsername string
	AdminPassword string
	SSHPublicKey  string

	// Optional network attachment. SubnetName requires VNetName.
	VNetName   string
	SubnetName string
	PublicIP   bool

	// Optional extra data disk, in GB. Zero means no data disk.
	DataDiskGB int32

	Tags map[string]string
}

// VMInfo contains information about the created agent host VM.
// PublicIP and PrivateIP may be empty; not every VM has both.
type VMInfo struct {
	ID            string
	Name          string
	PublicIP      string
	PrivateIP     string
	AdminUsername string
	Status        string
}

// RunResult is the structured result of a remote-command invocation
type RunResult struct {
	Message string
}

// CloudClient defines the cloud provisioning primitives the orchestrator
// consumes: idempotent resource-group creation, VM creation that blocks until
// the instance exists, and out-of-band script execution on a running VM.
type CloudClient interface {
	// EnsureResourceGroup creates the resource group or reuses an existing
	// one with the same name
	EnsureResourceGroup(ctx context.Context, name, location string, tags map[string]string) error

	// CreateVM creates a VM (idempotent by name within the resource group)
	// and blocks until the cloud reports it created
	CreateVM(ctx context.Context, spec VMSpec) (*VMInfo, error)

	// RunCommand executes a script on the named VM without an interactive
	// login and blocks until the remote side finishes or errors
	RunCommand(ctx context.Context, resourceGroup, vmName string, engine Engine, script string) (*RunResult, error)
}
