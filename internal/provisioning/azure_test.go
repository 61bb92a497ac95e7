package provisioning

import (
	"strings"
	"testing"
)

func TestEngineFor(t *testing.T) {
	if got := EngineFor(PlatformLinux); got != EngineShell {
		t.Errorf("EngineFor(linux) = %v, want %v", got, EngineShell)
	}
	if got := EngineFor(PlatformWindows); got != EnginePowerShell {
		t.Errorf("EngineFor(windows) = %v, want %v", got, EnginePowerShell)
	}
}

func TestImageReference(t *testing.T) {
	ref := imageReference("Canonical:ubuntu-24_04-lts:server:latest")
	if ref.Publisher == nil || *ref.Publisher != "Canonical" {
		t.Errorf("Publisher = %v, want Canonical", ref.Publisher)
	}
	if ref.SKU == nil || *ref.SKU != "server" {
		t.Errorf("SKU = %v, want server", ref.SKU)
	}
	if ref.ID != nil {
		t.Error("URN image should not set ID")
	}

	id := "/subscriptions/x/resourceGroups/rg/providers/Microsoft.Compute/images/custom"
	ref = imageReference(id)
	if ref.ID == nil || *ref.ID != id {
		t.Errorf("ID = %v, want %q", ref.ID, id)
	}
	if ref.Publisher != nil {
		t.Error("resource ID image should not set Publisher")
	}
}

func TestScriptLines(t *testing.T) {
	lines := scriptLines("line1\nline2\r\nline3")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, want := range []string{"line1", "line2", "line3"} {
		if *lines[i] != want {
			t.Errorf("lines[%d] = %q, want %q", i, *lines[i], want)
		}
	}
}

func TestTagMap(t *testing.T) {
	if tagMap(nil) != nil {
		t.Error("tagMap(nil) should be nil")
	}
	tags := tagMap(map[string]string{"managed-by": "agentforge"})
	if v, ok := tags["managed-by"]; !ok || *v != "agentforge" {
		t.Errorf("unexpected tags: %v", tags)
	}
}

func TestGenerateCloudConfig(t *testing.T) {
	userData, err := GenerateCloudConfig("agentforge", "ssh-rsa AAAA test")
	if err != nil {
		t.Fatalf("GenerateCloudConfig() error = %v", err)
	}
	if !strings.HasPrefix(userData, "#cloud-config") {
		t.Error("user-data must start with #cloud-config")
	}
	if !strings.Contains(userData, "name: agentforge") {
		t.Error("user-data missing admin user")
	}
	if !strings.Contains(userData, "ssh-rsa AAAA test") {
		t.Error("user-data missing public key")
	}
}
