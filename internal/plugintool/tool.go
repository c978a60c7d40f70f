// Package plugintool drives the plugin tool that ships inside the product
// distribution (bin/elasticsearch-plugin). Use Detect to obtain the tool
// for an install directory.
package plugintool

import (
	"path/filepath"
	"runtime"
)

// Progress reports output of a plugin operation.
type Progress struct {
	Error  error
	Plugin string
	Line   string // raw output line for logging
	Done   bool
}

// Tool installs, removes and lists plugins of an installation.
// Install and Remove run synchronously and stream progress on the channel;
// the caller owns and closes the channel.
//
// Every Tool is a plugins.StateProvider.
type Tool interface {
	// Name returns the binary name.
	Name() string
	// Install installs each plugin id into installDir.
	Install(installDir, configDir string, ids []string, progress chan<- Progress) error
	// Remove uninstalls each plugin id from installDir.
	Remove(installDir, configDir string, ids []string, progress chan<- Progress) error
	// InstalledPlugins returns the ids of plugins present in installDir.
	InstalledPlugins(installDir, configDir string) ([]string, error)
}

// Detect returns the CLI tool for the current platform.
func Detect() Tool {
	return &CLI{Binary: binaryName(runtime.GOOS)}
}

func binaryName(goos string) string {
	if goos == "windows" {
		return "elasticsearch-plugin.bat"
	}
	return "elasticsearch-plugin"
}

// PluginsDir is where the distribution keeps installed plugins.
func PluginsDir(installDir string) string {
	return filepath.Join(installDir, "plugins")
}
