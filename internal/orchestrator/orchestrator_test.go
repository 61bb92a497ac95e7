package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agentforge/internal/provisioning"
	"agentforge/internal/remotescript"
	"agentforge/internal/sshkeys"
)

// fakeCloudClient records every invocation so tests can assert call order and
// fail-fast behavior
type fakeCloudClient struct {
	ensureGroupCalls []string
	createVMCalls    []provisioning.VMSpec
	runCommandCalls  []runCommandCall

	ensureGroupErr error
	createVMErr    error
	runCommandErr  error

	vmInfo    *provisioning.VMInfo
	runResult *provisioning.RunResult
}

type runCommandCall struct {
	resourceGroup string
	vmName        string
	engine        provisioning.Engine
	script        string
}

func (f *fakeCloudClient) EnsureResourceGroup(ctx context.Context, name, location string, tags map[string]string) error {
	f.ensureGroupCalls = append(f.ensureGroupCalls, name+"/"+location)
	return f.ensureGroupErr
}

func (f *fakeCloudClient) CreateVM(ctx context.Context, spec provisioning.VMSpec) (*provisioning.VMInfo, error) {
	f.createVMCalls = append(f.createVMCalls, spec)
	if f.createVMErr != nil {
		return nil, f.createVMErr
	}
	if f.vmInfo != nil {
		return f.vmInfo, nil
	}
	return &provisioning.VMInfo{Name: spec.Name, PublicIP: "203.0.113.10", PrivateIP: "10.0.0.4", Status: "created"}, nil
}

func (f *fakeCloudClient) RunCommand(ctx context.Context, resourceGroup, vmName string, engine provisioning.Engine, script string) (*provisioning.RunResult, error) {
	f.runCommandCalls = append(f.runCommandCalls, runCommandCall{resourceGroup, vmName, engine, script})
	if f.runCommandErr != nil {
		return nil, f.runCommandErr
	}
	if f.runResult != nil {
		return f.runResult, nil
	}
	return &provisioning.RunResult{Message: "agent configured and started"}, nil
}

func (f *fakeCloudClient) totalCalls() int {
	return len(f.ensureGroupCalls) + len(f.createVMCalls) + len(f.runCommandCalls)
}

const installerContent = "#!/bin/bash\necho installing agent\n"

func newTestOrchestrator(t *testing.T, fake *fakeCloudClient) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"install-agent.sh", "install-agent.ps1"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(installerContent), 0755); err != nil {
			t.Fatalf("failed to write installer fixture: %v", err)
		}
	}
	o := New(fake, dir)
	o.newKeyPair = func() (*sshkeys.KeyPair, error) {
		return &sshkeys.KeyPair{PrivateKey: "fake-private", PublicKey: "ssh-rsa AAAA fake"}, nil
	}
	return o
}

func linuxRequest() ProvisionRequest {
	return ProvisionRequest{
		OrganizationURL: "https://dev.azure.com/contoso",
		PoolName:        "SelfHostedPool",
		ResourceGroup:   "rg-azdo-linux",
		Location:        "eastus",
		VMName:          "vm1",
		AgentName:       "agent1",
		Platform:        provisioning.PlatformLinux,
	}
}

func TestProvisionLinuxHappyPath(t *testing.T) {
	fake := &fakeCloudClient{}
	o := newTestOrchestrator(t, fake)

	result, err := o.Provision(t.Context(), linuxRequest(), ProvisionOptions{}, Secrets{AccessToken: "tok123"})
	if err != nil {
		t.Fatalf("Provision() returned error: %v", err)
	}

	if len(fake.ensureGroupCalls) != 1 || fake.ensureGroupCalls[0] != "rg-azdo-linux/eastus" {
		t.Errorf("resource group calls = %v, want one rg-azdo-linux/eastus", fake.ensureGroupCalls)
	}

	if len(fake.createVMCalls) != 1 {
		t.Fatalf("vm create calls = %d, want 1", len(fake.createVMCalls))
	}
	spec := fake.createVMCalls[0]
	if spec.SSHPublicKey == "" {
		t.Error("linux VM must be created with a generated SSH public key")
	}
	if spec.AdminPassword != "" {
		t.Error("linux VM must not carry an admin password")
	}

	if len(fake.runCommandCalls) != 1 {
		t.Fatalf("run-command calls = %d, want 1", len(fake.runCommandCalls))
	}
	call := fake.runCommandCalls[0]
	if call.engine != provisioning.EngineShell {
		t.Errorf("engine = %q, want %q", call.engine, provisioning.EngineShell)
	}
	if got := strings.Count(call.script, "tok123"); got != 1 {
		t.Errorf("script contains %d occurrences of the access token, want exactly 1", got)
	}
	if strings.Contains(call.script, remotescript.SlotAccessToken) {
		t.Error("script still contains the access token placeholder")
	}

	if result.PublicIP != "203.0.113.10" || result.PrivateIP != "10.0.0.4" {
		t.Errorf("result endpoints = %q/%q, want fake client's addresses", result.PublicIP, result.PrivateIP)
	}
	if result.AdminUsername != "azureagent" {
		t.Errorf("admin username = %q, want default azureagent", result.AdminUsername)
	}
	if result.RemoteOutput != "agent configured and started" {
		t.Errorf("remote output = %q, want verbatim fake message", result.RemoteOutput)
	}
}

func TestProvisionSubnetRequiresVNet(t *testing.T) {
	fake := &fakeCloudClient{}
	o := newTestOrchestrator(t, fake)

	opts := ProvisionOptions{SubnetName: "agents-subnet"}
	_, err := o.Provision(t.Context(), linuxRequest(), opts, Secrets{AccessToken: "tok123"})

	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("error = %v, want ErrInvalidConfiguration", err)
	}
	if fake.totalCalls() != 0 {
		t.Errorf("fake client recorded %d invocations, want 0 (fail-fast)", fake.totalCalls())
	}
}

func TestProvisionPublicIPStrictBoolean(t *testing.T) {
	for _, bad := range []string{"yes", "TRUE", "1", "False", " true"} {
		fake := &fakeCloudClient{}
		o := newTestOrchestrator(t, fake)

		_, err := o.Provision(t.Context(), linuxRequest(), ProvisionOptions{PublicIP: bad}, Secrets{AccessToken: "tok123"})
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("PublicIP=%q: error = %v, want ErrInvalidConfiguration", bad, err)
		}
		if fake.totalCalls() != 0 {
			t.Errorf("PublicIP=%q: %d invocations recorded, want 0", bad, fake.totalCalls())
		}
	}

	for _, ok := range []string{"", "true", "false"} {
		fake := &fakeCloudClient{}
		o := newTestOrchestrator(t, fake)

		if _, err := o.Provision(t.Context(), linuxRequest(), ProvisionOptions{PublicIP: ok}, Secrets{AccessToken: "tok123"}); err != nil {
			t.Errorf("PublicIP=%q: unexpected error %v", ok, err)
		}
	}
}

func TestProvisionVMCreateFailureIsFatal(t *testing.T) {
	fake := &fakeCloudClient{createVMErr: errors.New("quota exceeded in region")}
	o := newTestOrchestrator(t, fake)

	_, err := o.Provision(t.Context(), linuxRequest(), ProvisionOptions{}, Secrets{AccessToken: "tok123"})

	if !errors.Is(err, ErrProvisioningFailed) {
		t.Errorf("error = %v, want ErrProvisioningFailed", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded in region") {
		t.Errorf("error %q does not preserve the collaborator's text", err)
	}
	if len(fake.runCommandCalls) != 0 {
		t.Errorf("run-command was invoked %d times after VM create failed, want 0", len(fake.runCommandCalls))
	}
}

func TestProvisionWindowsRequiresAdminPassword(t *testing.T) {
	fake := &fakeCloudClient{}
	o := newTestOrchestrator(t, fake)

	req := linuxRequest()
	req.Platform = provisioning.PlatformWindows

	_, err := o.Provision(t.Context(), req, ProvisionOptions{}, Secrets{AccessToken: "tok123"})

	if !errors.Is(err, ErrMissingCredential) {
		t.Errorf("error = %v, want ErrMissingCredential", err)
	}
	if fake.totalCalls() != 0 {
		t.Errorf("fake client recorded %d invocations, want 0 (before any VM-create call)", fake.totalCalls())
	}
}

func TestProvisionWindowsUsesPasswordAndPowerShell(t *testing.T) {
	fake := &fakeCloudClient{}
	o := newTestOrchestrator(t, fake)

	req := linuxRequest()
	req.Platform = provisioning.PlatformWindows
	req.ResourceGroup = "rg-azdo-win"
	secrets := Secrets{AccessToken: "tok123", AdminPassword: "S3cret!Pass"}

	_, err := o.Provision(t.Context(), req, ProvisionOptions{}, secrets)
	if err != nil {
		t.Fatalf("Provision() returned error: %v", err)
	}

	spec := fake.createVMCalls[0]
	if spec.AdminPassword != "S3cret!Pass" {
		t.Error("windows VM must be created with the admin password")
	}
	if spec.SSHPublicKey != "" {
		t.Error("windows VM must not carry an SSH public key")
	}

	call := fake.runCommandCalls[0]
	if call.engine != provisioning.EnginePowerShell {
		t.Errorf("engine = %q, want %q", call.engine, provisioning.EnginePowerShell)
	}
	// The admin password is supplied at VM-creation time, never in the script
	if strings.Contains(call.script, "S3cret!Pass") {
		t.Error("admin password leaked into the remote script")
	}
}

func TestProvisionMissingAccessToken(t *testing.T) {
	fake := &fakeCloudClient{}
	o := newTestOrchestrator(t, fake)

	_, err := o.Provision(t.Context(), linuxRequest(), ProvisionOptions{}, Secrets{})
	if !errors.Is(err, ErrMissingCredential) {
		t.Errorf("error = %v, want ErrMissingCredential", err)
	}
	if fake.totalCalls() != 0 {
		t.Errorf("fake client recorded %d invocations, want 0", fake.totalCalls())
	}
}

func TestProvisionInstallerScriptMissing(t *testing.T) {
	fake := &fakeCloudClient{}
	o := New(fake, t.TempDir()) // empty scripts dir
	o.newKeyPair = func() (*sshkeys.KeyPair, error) {
		return &sshkeys.KeyPair{PublicKey: "ssh-rsa AAAA fake"}, nil
	}

	_, err := o.Provision(t.Context(), linuxRequest(), ProvisionOptions{}, Secrets{AccessToken: "tok123"})

	if !errors.Is(err, ErrPrerequisiteMissing) {
		t.Errorf("error = %v, want ErrPrerequisiteMissing", err)
	}
	// The VM was already created when the prerequisite check failed; no
	// teardown happens, and no remote command is attempted
	if len(fake.runCommandCalls) != 0 {
		t.Errorf("run-command was invoked despite missing installer script")
	}
}

func TestProvisionRemoteExecutionFailureSurfacedVerbatim(t *testing.T) {
	fake := &fakeCloudClient{runCommandErr: errors.New("VM agent unresponsive: extension timeout")}
	o := newTestOrchestrator(t, fake)

	_, err := o.Provision(t.Context(), linuxRequest(), ProvisionOptions{}, Secrets{AccessToken: "tok123"})

	if !errors.Is(err, ErrProvisioningFailed) {
		t.Errorf("error = %v, want ErrProvisioningFailed", err)
	}
	if !strings.Contains(err.Error(), "VM agent unresponsive: extension timeout") {
		t.Errorf("error %q does not preserve the remote failure text", err)
	}
}

func TestProvisionInstallerPayloadRoundTrip(t *testing.T) {
	fake := &fakeCloudClient{}
	o := newTestOrchestrator(t, fake)

	_, err := o.Provision(t.Context(), linuxRequest(), ProvisionOptions{}, Secrets{AccessToken: "tok123"})
	if err != nil {
		t.Fatalf("Provision() returned error: %v", err)
	}

	script := fake.runCommandCalls[0].script
	encoded := remotescript.EncodeInstaller([]byte(installerContent))
	if !strings.Contains(script, encoded) {
		t.Error("rendered script does not embed the exact base64 installer payload")
	}
}

func TestProvisionOptionDefaults(t *testing.T) {
	fake := &fakeCloudClient{}
	o := newTestOrchestrator(t, fake)

	_, err := o.Provision(t.Context(), linuxRequest(), ProvisionOptions{}, Secrets{AccessToken: "tok123"})
	if err != nil {
		t.Fatalf("Provision() returned error: %v", err)
	}

	spec := fake.createVMCalls[0]
	if spec.Size != "Standard_DS2_v2" {
		t.Errorf("size = %q, want default Standard_DS2_v2", spec.Size)
	}
	if !spec.PublicIP {
		t.Error("public IP should default to true")
	}
	if spec.Image == "" {
		t.Error("image should default per platform")
	}
}
