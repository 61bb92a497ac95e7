package bootstrap

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agentforge/internal/control"
)

// fakeController records remote operations in order
type fakeController struct {
	host     string
	writes   map[string][]byte
	commands []string
	runErr   error
	closed   bool
}

func (f *fakeController) Close() error { f.closed = true; return nil }

func (f *fakeController) Run(command string) (string, error) {
	f.commands = append(f.commands, command)
	if f.runErr != nil && strings.HasPrefix(command, "bash ") {
		return "", f.runErr
	}
	return "agent registered", nil
}

func (f *fakeController) WriteFile(remotePath string, content []byte, mode os.FileMode) error {
	if f.writes == nil {
		f.writes = map[string][]byte{}
	}
	f.writes[remotePath] = content
	return nil
}

func (f *fakeController) HostName() string { return f.host }

func newTestBootstrapper(fake *fakeController) *Bootstrapper {
	return &Bootstrapper{
		newController: func(cfg control.Config) (control.Controller, error) {
			fake.host = cfg.Host
			return fake, nil
		},
		connectTimeout: time.Second,
		sshTimeout:     time.Second,
	}
}

func testParams(t *testing.T) Params {
	t.Helper()
	dir := t.TempDir()
	installer := filepath.Join(dir, "install-agent.sh")
	if err := os.WriteFile(installer, []byte("#!/bin/bash\necho hi\n"), 0755); err != nil {
		t.Fatalf("failed to write installer fixture: %v", err)
	}
	return Params{
		OrganizationURL: "https://dev.azure.com/contoso",
		PoolName:        "SelfHostedPool",
		AgentName:       "agent1",
		AgentVersion:    "4.258.1",
		InstallHome:     "/opt/azagent",
		WorkDir:         "_work",
		AccessToken:     "tok123",
		ScriptsDir:      dir,
	}
}

func TestBootstrapUploadsAndRunsScript(t *testing.T) {
	fake := &fakeController{}
	b := newTestBootstrapper(fake)

	out, err := b.Bootstrap(Target{Host: "203.0.113.7", User: "agentforge", PrivateKey: "pem"}, testParams(t))
	if err != nil {
		t.Fatalf("Bootstrap() returned error: %v", err)
	}
	if out != "agent registered" {
		t.Errorf("output = %q, want remote output", out)
	}

	script, ok := fake.writes[remoteScriptPath]
	if !ok {
		t.Fatal("bootstrap script was not uploaded")
	}
	if !strings.Contains(string(script), "tok123") {
		t.Error("uploaded script does not carry the access token")
	}
	if !strings.Contains(string(script), "SelfHostedPool") {
		t.Error("uploaded script does not carry the pool name")
	}

	if len(fake.commands) != 2 {
		t.Fatalf("commands = %v, want run + cleanup", fake.commands)
	}
	if fake.commands[0] != "bash "+remoteScriptPath {
		t.Errorf("first command = %q, want script execution", fake.commands[0])
	}
	if fake.commands[1] != "rm -f "+remoteScriptPath {
		t.Errorf("second command = %q, want token cleanup", fake.commands[1])
	}
	if !fake.closed {
		t.Error("controller was not closed")
	}
}

func TestBootstrapRunFailureStillCleansUp(t *testing.T) {
	fake := &fakeController{runErr: errors.New("installer exited 1")}
	b := newTestBootstrapper(fake)

	_, err := b.Bootstrap(Target{Host: "203.0.113.7", User: "agentforge", PrivateKey: "pem"}, testParams(t))
	if err == nil || !strings.Contains(err.Error(), "installer exited 1") {
		t.Errorf("error = %v, want installer failure text preserved", err)
	}

	if len(fake.commands) != 2 || fake.commands[1] != "rm -f "+remoteScriptPath {
		t.Errorf("cleanup did not run after failure: %v", fake.commands)
	}
}

func TestBootstrapMissingInstaller(t *testing.T) {
	fake := &fakeController{}
	b := newTestBootstrapper(fake)

	params := testParams(t)
	params.ScriptsDir = t.TempDir() // empty

	_, err := b.Bootstrap(Target{Host: "203.0.113.7", User: "agentforge", PrivateKey: "pem"}, params)
	if err == nil {
		t.Error("expected error for missing installer script")
	}
	if len(fake.commands) != 0 {
		t.Error("no remote commands should run when the installer is missing")
	}
}
