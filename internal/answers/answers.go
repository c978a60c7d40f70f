// Package answers reads unattended-install answer files. An answer file is
// TOML:
//
//	install_dir     = "/opt/elasticsearch"
//	config_dir      = "/etc/elasticsearch"
//	product_version = "8.15.0"
//	catalog_url     = "https://example.org/manifest.json"
//	yes             = true
//	plugins         = "analysis-icu,analysis-kuromoji"
//
// Every key is optional. plugins takes the same comma-separated form as the
// --plugins flag, including the "__unchanged__" sentinel.
package answers

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/kb-labs/es-install/internal/plugins"
)

// Answers holds the values read from an answer file.
type Answers struct {
	InstallDir     string  `toml:"install_dir"`
	ConfigDir      string  `toml:"config_dir"`
	ProductVersion string  `toml:"product_version"`
	CatalogURL     string  `toml:"catalog_url"`
	Yes            bool    `toml:"yes"`
	Plugins        *string `toml:"plugins"`
}

// Load parses the answer file at path. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func Load(path string) (*Answers, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open answers: %w", err)
	}
	defer f.Close()

	var a Answers
	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("answers %s: %s", path, strict.String())
		}
		return nil, fmt.Errorf("parse answers %s: %w", path, err)
	}
	return &a, nil
}

// PluginList returns the plugin selection, or nil when the file does not
// set plugins at all.
func (a *Answers) PluginList() []string {
	if a.Plugins == nil {
		return nil
	}
	return plugins.ParseList(*a.Plugins)
}
