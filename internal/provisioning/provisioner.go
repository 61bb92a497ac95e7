package provisioning

import "context"

// HostSpec represents the specification for creating an agent host on clouds
// reached over SSH (no run-command primitive)
type HostSpec struct {
	Name         string
	Cores        int
	Memory       int64 // in GB
	DiskSize     int64 // in GB
	ImageID      string
	Zone         string
	SSHPublicKey string
	Username     string
	Tags         map[string]string
}

// HostInfo contains information about the created agent host
type HostInfo struct {
	ID     string
	IP     string
	Name   string
	Zone   string
	Status string
}

// InstanceProvisioner defines the interface for managing agent host instances
// on SSH-bootstrapped clouds
type InstanceProvisioner interface {
	Create(ctx context.Context, spec HostSpec) (*HostInfo, error)
	Delete(ctx context.Context, instanceID string) error
}
