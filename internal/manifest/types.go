package manifest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/kb-labs/es-install/internal/plugins"
)

// Component is an optional plugin offered by the installer.
type Component struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// MinVersion is a semver constraint on the product version, e.g. ">= 8.0".
	MinVersion string `json:"minVersion,omitempty"`
	Default    bool   `json:"default"`
	// Requires lists plugin ids that must be selected alongside this one.
	Requires []string `json:"requires,omitempty"`
}

// Manifest describes the product distribution and its plugin catalog.
type Manifest struct {
	Version        string      `json:"version"`
	Product        string      `json:"product"`
	ProductVersion string      `json:"productVersion"`
	Plugins        []Component `json:"plugins"`

	// Source records where Load found the manifest: a URL, a file path or
	// SourceEmbedded.
	Source string `json:"-"`
	// Skipped lists why earlier sources were passed over.
	Skipped []string `json:"-"`
}

// Lookup returns the component with the given id.
func (m *Manifest) Lookup(id string) (Component, bool) {
	for _, c := range m.Plugins {
		if c.ID == id {
			return c, true
		}
	}
	return Component{}, false
}

// Catalog returns the strategy a plugins.Step calls on Refresh. Components
// whose MinVersion does not admit productVersion are left out; an empty
// productVersion admits everything.
func (m *Manifest) Catalog(productVersion string) plugins.CatalogFunc {
	return func() ([]plugins.Plugin, error) {
		var v *semver.Version
		if productVersion != "" {
			parsed, err := semver.NewVersion(productVersion)
			if err != nil {
				return nil, fmt.Errorf("product version %q: %w", productVersion, err)
			}
			v = parsed
		}

		out := make([]plugins.Plugin, 0, len(m.Plugins))
		for _, c := range m.Plugins {
			if v != nil && c.MinVersion != "" {
				constraint, err := semver.NewConstraint(c.MinVersion)
				if err != nil {
					return nil, fmt.Errorf("plugin %s: constraint %q: %w", c.ID, c.MinVersion, err)
				}
				if !constraint.Check(v) {
					continue
				}
			}
			out = append(out, plugins.Plugin{
				URL:         c.ID,
				Name:        c.Name,
				Description: c.Description,
			})
		}
		return out, nil
	}
}

// DefaultIDs returns the ids of default-marked plugins, or the unchanged
// sentinel when the manifest marks none.
func (m *Manifest) DefaultIDs() []string {
	var ids []string
	for _, c := range m.Plugins {
		if c.Default {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return []string{plugins.UnchangedMoniker}
	}
	return ids
}

// Validator returns the selection rule for a plugins.Step: every selected
// plugin's requirements must be selected too.
func (m *Manifest) Validator() func(*plugins.Step) error {
	return func(s *plugins.Step) error {
		selected := make(map[string]bool)
		for _, id := range s.Plugins() {
			selected[id] = true
		}
		for _, id := range s.Plugins() {
			c, ok := m.Lookup(id)
			if !ok {
				continue
			}
			for _, dep := range c.Requires {
				if !selected[dep] {
					return fmt.Errorf("%s requires %s", id, dep)
				}
			}
		}
		return nil
	}
}
