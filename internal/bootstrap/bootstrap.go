// Package bootstrap registers an agent on a host reached over SSH: existing
// machines, or cloud instances on providers without a run-command primitive.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agentforge/internal/control"
	"agentforge/internal/logging"
	"agentforge/internal/provisioning"
	"agentforge/internal/remotescript"

	"go.uber.org/zap"
)

const remoteScriptPath = "/tmp/agentforge-bootstrap.sh"

// Target identifies the host to bootstrap and how to reach it
type Target struct {
	Host       string
	User       string
	PrivateKey string // PEM-encoded
}

// Params carries the registration parameters for one bootstrap run
type Params struct {
	OrganizationURL string
	PoolName        string
	AgentName       string
	AgentVersion    string
	InstallHome     string
	WorkDir         string
	AccessToken     string
	ScriptsDir      string
}

// Bootstrapper installs and registers agents over SSH
type Bootstrapper struct {
	// Controller creation is injectable for tests
	newController func(control.Config) (control.Controller, error)

	connectTimeout time.Duration
	sshTimeout     time.Duration
}

// New creates a Bootstrapper with production connection settings
func New() *Bootstrapper {
	return &Bootstrapper{
		newController:  control.NewController,
		connectTimeout: 5 * time.Minute,
		sshTimeout:     30 * time.Second,
	}
}

// Bootstrap uploads the rendered bootstrap script to the target and runs it,
// returning the remote output. Failures surface the remote error text; no
// retry and no cleanup of a partially configured host.
func (b *Bootstrapper) Bootstrap(target Target, params Params) (string, error) {
	installerPath := filepath.Join(params.ScriptsDir, "install-agent.sh")
	raw, err := os.ReadFile(installerPath)
	if err != nil {
		return "", fmt.Errorf("installer script %s: %w", installerPath, err)
	}

	script := remotescript.ForPlatform(provisioning.PlatformLinux).Render(remotescript.Slots{
		InstallerPayload: remotescript.EncodeInstaller(raw),
		AccessToken:      params.AccessToken,
		AgentVersion:     params.AgentVersion,
		InstallHome:      params.InstallHome,
		WorkDir:          params.WorkDir,
		OrganizationURL:  params.OrganizationURL,
		PoolName:         params.PoolName,
		AgentName:        params.AgentName,
	})

	controller, err := b.newController(control.Config{
		Host:       target.Host,
		User:       target.User,
		PrivateKey: target.PrivateKey,
		Timeout:    b.connectTimeout,
		SSHTimeout: b.sshTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", target.Host, err)
	}
	defer safeClose(controller)

	if err := controller.WriteFile(remoteScriptPath, []byte(script), 0700); err != nil {
		return "", fmt.Errorf("failed to upload bootstrap script: %w", err)
	}

	logging.Logger().Info("Running bootstrap script",
		zap.String("host", target.Host),
		zap.String("agent_name", params.AgentName),
		zap.String("pool", params.PoolName))

	output, err := controller.Run("bash " + remoteScriptPath)

	// The script embeds the access token; remove it regardless of outcome
	if _, cleanupErr := controller.Run("rm -f " + remoteScriptPath); cleanupErr != nil {
		logging.Logger().Warn("failed to remove remote bootstrap script",
			zap.String("host", target.Host),
			zap.Error(cleanupErr))
	}

	if err != nil {
		return output, fmt.Errorf("bootstrap on %s failed: %w", target.Host, err)
	}
	return output, nil
}

func safeClose(controller control.Controller) {
	if err := controller.Close(); err != nil {
		logging.Logger().Warn("failed to close controller", zap.Error(err))
	}
}
