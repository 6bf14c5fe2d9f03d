package mcp

import (
	"fmt"

	"github.com/lumenforge/conduit/pkg/pluginsdk"
)

// validateManifest loads the plugin manifest referenced by a server config,
// if any, and checks the server's declared Config against its schema. A
// server with no ManifestPath skips validation entirely.
func validateManifest(cfg *ServerConfig) (*pluginsdk.Manifest, error) {
	if cfg.ManifestPath == "" {
		return nil, nil
	}

	manifest, err := pluginsdk.DecodeManifestFile(cfg.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("load manifest for %s: %w", cfg.ID, err)
	}

	if err := manifest.ValidateConfig(cfg.Config); err != nil {
		return nil, fmt.Errorf("config for %s: %w", cfg.ID, err)
	}

	return manifest, nil
}

// LoadInstalledPlugins reads a plugin index written by a marketplace install
// step and turns each installed MCP-server plugin into a ServerConfig ready
// to hand to Manager.Connect. Plugins whose manifest kind isn't "mcp-server"
// are skipped; this manager only knows how to launch MCP subprocesses.
func LoadInstalledPlugins(index *pluginsdk.PluginIndex) []*ServerConfig {
	if index == nil {
		return nil
	}

	var configs []*ServerConfig
	for id, installed := range index.Plugins {
		if !installed.Enabled {
			continue
		}

		cfg := &ServerConfig{
			ID:           id,
			Name:         id,
			Transport:    TransportStdio,
			Command:      installed.BinaryPath,
			ManifestPath: installed.ManifestPath,
			Config:       installed.Config,
			AutoStart:    true,
		}
		if installed.Manifest != nil {
			cfg.Name = installed.Manifest.Name
		}
		configs = append(configs, cfg)
	}
	return configs
}
