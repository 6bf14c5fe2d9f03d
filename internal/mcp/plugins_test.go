package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumenforge/conduit/pkg/pluginsdk"
)

func writeManifest(t *testing.T, dir string, schema string) string {
	path := filepath.Join(dir, pluginsdk.ManifestFilename)
	data := `{"id": "test-plugin", "kind": "mcp-server", "configSchema": ` + schema + `}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestValidateManifestNoPath(t *testing.T) {
	manifest, err := validateManifest(&ServerConfig{ID: "server1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if manifest != nil {
		t.Error("expected nil manifest when ManifestPath is unset")
	}
}

func TestValidateManifestConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{"type":"object","required":["token"],"properties":{"token":{"type":"string"}}}`)

	_, err := validateManifest(&ServerConfig{ID: "server1", ManifestPath: path, Config: map[string]any{}})
	if err == nil {
		t.Fatal("expected error for config missing required token")
	}
}

func TestValidateManifestConfigAccepted(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{"type":"object","required":["token"],"properties":{"token":{"type":"string"}}}`)

	manifest, err := validateManifest(&ServerConfig{ID: "server1", ManifestPath: path, Config: map[string]any{"token": "abc"}})
	if err != nil {
		t.Fatalf("expected config to validate, got %v", err)
	}
	if manifest == nil || manifest.ID != "test-plugin" {
		t.Fatalf("expected decoded manifest, got %v", manifest)
	}
}

func TestManagerConnectRejectsInvalidPluginConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{"type":"object","required":["token"],"properties":{"token":{"type":"string"}}}`)

	cfg := &Config{
		Enabled: true,
		Servers: []*ServerConfig{
			{ID: "server1", Transport: TransportStdio, Command: "echo", ManifestPath: path, Config: map[string]any{}},
		},
	}
	mgr := NewManager(cfg, nil)

	if err := mgr.Connect(context.Background(), "server1"); err == nil {
		t.Fatal("expected Connect to reject a server whose config fails manifest validation")
	}

	if _, exists := mgr.Client("server1"); exists {
		t.Error("expected no client to be registered after a rejected connect")
	}
}

func TestLoadInstalledPluginsSkipsDisabled(t *testing.T) {
	index := pluginsdk.NewPluginIndex()
	index.Plugins["enabled-plugin"] = &pluginsdk.InstalledPlugin{
		ID:         "enabled-plugin",
		BinaryPath: "/usr/local/bin/enabled-plugin",
		Enabled:    true,
		Manifest:   &pluginsdk.MarketplaceManifest{Name: "Enabled Plugin"},
	}
	index.Plugins["disabled-plugin"] = &pluginsdk.InstalledPlugin{
		ID:         "disabled-plugin",
		BinaryPath: "/usr/local/bin/disabled-plugin",
		Enabled:    false,
	}

	configs := LoadInstalledPlugins(index)
	if len(configs) != 1 {
		t.Fatalf("expected 1 enabled plugin config, got %d", len(configs))
	}
	if configs[0].ID != "enabled-plugin" {
		t.Errorf("ID = %q, want %q", configs[0].ID, "enabled-plugin")
	}
	if configs[0].Name != "Enabled Plugin" {
		t.Errorf("Name = %q, want %q", configs[0].Name, "Enabled Plugin")
	}
	if configs[0].Command != "/usr/local/bin/enabled-plugin" {
		t.Errorf("Command = %q, want %q", configs[0].Command, "/usr/local/bin/enabled-plugin")
	}
}

func TestLoadInstalledPluginsNilIndex(t *testing.T) {
	if configs := LoadInstalledPlugins(nil); configs != nil {
		t.Errorf("expected nil configs for nil index, got %v", configs)
	}
}
