// Package remotescript assembles the bootstrap script executed out-of-band on
// a freshly created agent host. A Template carries named slots; rendering is a
// single literal substitution pass, so a slot value that happens to contain a
// slot-looking token is never expanded again.
package remotescript

import (
	"encoding/base64"
	"strings"

	"agentforge/internal/provisioning"
)

// Slot tokens recognized by the built-in templates
const (
	SlotInstallerPayload = "__INSTALLER_B64__"
	SlotAccessToken      = "__ACCESS_TOKEN__"
	SlotAgentVersion     = "__AGENT_VERSION__"
	SlotInstallHome      = "__INSTALL_HOME__"
	SlotWorkDir          = "__WORK_DIR__"
	SlotOrganizationURL  = "__ORG_URL__"
	SlotPoolName         = "__POOL_NAME__"
	SlotAgentName        = "__AGENT_NAME__"
)

// Slots holds the values substituted into a bootstrap template. Every value is
// treated as opaque text; nothing is re-scanned after substitution.
type Slots struct {
	InstallerPayload string // transport-safe single-line base64 of the installer script
	AccessToken      string
	AgentVersion     string
	InstallHome      string
	WorkDir          string
	OrganizationURL  string
	PoolName         string
	AgentName        string
}

// Template is a bootstrap script body with named slot tokens
type Template struct {
	Body string
}

// Render materializes the template in a single substitution pass.
// strings.Replacer never rescans replaced text, which is exactly the
// no-recursive-expansion guarantee the bootstrap sequence relies on.
func (t Template) Render(s Slots) string {
	replacer := strings.NewReplacer(
		SlotInstallerPayload, s.InstallerPayload,
		SlotAccessToken, s.AccessToken,
		SlotAgentVersion, s.AgentVersion,
		SlotInstallHome, s.InstallHome,
		SlotWorkDir, s.WorkDir,
		SlotOrganizationURL, s.OrganizationURL,
		SlotPoolName, s.PoolName,
		SlotAgentName, s.AgentName,
	)
	return replacer.Replace(t.Body)
}

// EncodeInstaller encodes the raw installer script bytes as a single-line
// base64 blob safe to embed in a remote command
func EncodeInstaller(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// ForPlatform returns the built-in bootstrap template for a platform
func ForPlatform(platform provisioning.Platform) Template {
	if platform == provisioning.PlatformWindows {
		return Template{Body: windowsBootstrap}
	}
	return Template{Body: linuxBootstrap}
}

// linuxBootstrap decodes the installer payload, exports the installer
// environment contract and invokes it with the positional contract
// {orgURL, pool, agentName}. The access token travels via environment, not
// argv, so it does not show up in process listings.
const linuxBootstrap = `#!/bin/bash
set -euo pipefail
mkdir -p '__INSTALL_HOME__'
cd '__INSTALL_HOME__'
echo '__INSTALLER_B64__' | base64 -d > install-agent.sh
chmod +x install-agent.sh
export AZP_TOKEN='__ACCESS_TOKEN__'
export AZP_AGENT_VERSION='__AGENT_VERSION__'
export AZP_INSTALL_HOME='__INSTALL_HOME__'
export AZP_WORK_DIR='__WORK_DIR__'
./install-agent.sh '__ORG_URL__' '__POOL_NAME__' '__AGENT_NAME__'
`

const windowsBootstrap = `$ErrorActionPreference = "Stop"
New-Item -ItemType Directory -Force -Path "__INSTALL_HOME__" | Out-Null
Set-Location "__INSTALL_HOME__"
[IO.File]::WriteAllBytes("install-agent.ps1", [Convert]::FromBase64String("__INSTALLER_B64__"))
$env:AZP_TOKEN = "__ACCESS_TOKEN__"
$env:AZP_AGENT_VERSION = "__AGENT_VERSION__"
$env:AZP_INSTALL_HOME = "__INSTALL_HOME__"
$env:AZP_WORK_DIR = "__WORK_DIR__"
./install-agent.ps1 "__ORG_URL__" "__POOL_NAME__" "__AGENT_NAME__"
`
