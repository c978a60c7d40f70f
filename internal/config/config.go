// Package config manages the install record written to
// <installDir>/.es-install/install.json. Its presence marks an installation
// as already installed. The plugin list is informational; upgrades seed the
// selection from the plugins found on disk by the plugin tool.
// The schema is versioned to support forward-compatible migrations.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kb-labs/es-install/internal/manifest"
	"github.com/kb-labs/es-install/internal/plugins"
)

const (
	recordVersion = 1
	recordDir     = ".es-install"
	recordFile    = "install.json"
)

// InstallRecord is the persistent state written after each install or upgrade.
type InstallRecord struct {
	InstalledAt    time.Time         `json:"installedAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	InstallID      string            `json:"installId"`
	InstallDir     string            `json:"installDir"`
	ConfigDir      string            `json:"configDir"`
	ProductVersion string            `json:"productVersion"`
	Plugins        string            `json:"plugins"` // comma-separated plugin ids
	Manifest       manifest.Manifest `json:"manifest"`
	Version        int               `json:"version"`
}

// Dir returns the directory holding the record and install logs.
func Dir(installDir string) string {
	return filepath.Join(installDir, recordDir)
}

// RecordPath returns the path to the record file for the given install directory.
func RecordPath(installDir string) string {
	return filepath.Join(Dir(installDir), recordFile)
}

// Exists reports whether installDir carries an install record.
func Exists(installDir string) bool {
	_, err := os.Stat(RecordPath(installDir))
	return err == nil
}

// Write persists rec to <installDir>/.es-install/install.json.
func Write(installDir string, rec *InstallRecord) error {
	dir := Dir(installDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tmp := RecordPath(installDir) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := os.Rename(tmp, RecordPath(installDir)); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Read loads and parses the record from <installDir>/.es-install/install.json.
func Read(installDir string) (*InstallRecord, error) {
	path := RecordPath(installDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no install record at %s: is the product installed?", path)
		}
		return nil, fmt.Errorf("read record: %w", err)
	}

	var rec InstallRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	if rec.Version > recordVersion {
		return nil, fmt.Errorf("record %s has version %d, this installer understands up to %d", path, rec.Version, recordVersion)
	}
	return &rec, nil
}

// NewRecord creates a fresh InstallRecord ready to be written.
func NewRecord(installDir, configDir string, selected []string, m *manifest.Manifest) *InstallRecord {
	abs, _ := filepath.Abs(installDir)
	absConf := ""
	if configDir != "" {
		absConf, _ = filepath.Abs(configDir)
	}
	now := time.Now().UTC()
	return &InstallRecord{
		Version:        recordVersion,
		InstallID:      uuid.NewString(),
		InstalledAt:    now,
		UpdatedAt:      now,
		InstallDir:     abs,
		ConfigDir:      absConf,
		ProductVersion: m.ProductVersion,
		Plugins:        plugins.FormatList(selected),
		Manifest:       *m,
	}
}

// PluginList returns the recorded selection as identifiers.
func (r *InstallRecord) PluginList() []string {
	return plugins.ParseList(r.Plugins)
}
