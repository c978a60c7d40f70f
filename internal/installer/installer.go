// Package installer applies a plugin selection to an installation. It
// delegates plugin operations to a plugintool.Tool and persists the
// resulting install record via the config package.
package installer

import (
	"fmt"
	"time"

	"github.com/kb-labs/es-install/internal/config"
	"github.com/kb-labs/es-install/internal/logger"
	"github.com/kb-labs/es-install/internal/manifest"
	"github.com/kb-labs/es-install/internal/plugins"
	"github.com/kb-labs/es-install/internal/plugintool"
)

// Selection holds what the user chose in the wizard.
type Selection struct {
	InstallDir       string
	ConfigDir        string
	Plugins          []string // plugin ids, catalog order
	// Managed lists the catalog ids the selection governs. Installed plugins
	// outside it are never removed.
	Managed          []string
	AlreadyInstalled bool
}

// Result is returned after a successful Apply.
type Result struct {
	InstallDir string
	RecordPath string
	Diff       *PluginDiff
	Duration   time.Duration
}

// PluginDiff describes how the selection differs from what is installed.
type PluginDiff struct {
	Added     []string // selected, not installed
	Removed   []string // installed, managed, not selected
	Kept      []string // installed and selected
	Unmanaged []string // installed, outside the catalog, left alone
}

// HasChanges returns true if there is anything to install or remove.
func (d *PluginDiff) HasChanges() bool {
	return len(d.Added)+len(d.Removed) > 0
}

// Diff compares installed plugin ids with the selection. Only ids in managed
// can be removed; other installed ids are reported as Unmanaged. Added and
// Kept follow selection order, Removed and Unmanaged follow installed order.
func Diff(installed, selected, managed []string) *PluginDiff {
	inst := toSet(installed)
	sel := toSet(selected)
	known := toSet(managed)

	d := &PluginDiff{}
	for _, id := range selected {
		if inst[id] {
			d.Kept = append(d.Kept, id)
		} else {
			d.Added = append(d.Added, id)
		}
	}
	for _, id := range installed {
		switch {
		case sel[id]:
		case known[id]:
			d.Removed = append(d.Removed, id)
		default:
			d.Unmanaged = append(d.Unmanaged, id)
		}
	}
	return d
}

// CatalogIDs returns the ids of the catalog entries, in catalog order.
func CatalogIDs(catalog []plugins.Plugin) []string {
	ids := make([]string, len(catalog))
	for i, p := range catalog {
		ids[i] = p.URL
	}
	return ids
}

// UnknownIDs returns the requested ids that match no catalog entry. The
// unchanged sentinel is never reported.
func UnknownIDs(ids []string, catalog []plugins.Plugin) []string {
	known := make(map[string]bool, len(catalog))
	for _, p := range catalog {
		known[p.URL] = true
	}
	var out []string
	for _, id := range ids {
		if id != plugins.UnchangedMoniker && !known[id] {
			out = append(out, id)
		}
	}
	return out
}

// Installer applies selections.
type Installer struct {
	Tool   plugintool.Tool
	Log    *logger.Logger
	OnStep func(step, total int, label string) // called at each named stage
	OnLine func(line string)                   // called for each raw output line from the tool
}

// Plan reports what Apply would change for sel.
func (ins *Installer) Plan(sel *Selection) (*PluginDiff, error) {
	installed, err := ins.Tool.InstalledPlugins(sel.InstallDir, sel.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("list installed plugins: %w", err)
	}
	return Diff(installed, sel.Plugins, sel.Managed), nil
}

// Apply removes deselected plugins, installs newly selected ones and writes
// the install record. On upgrade the record's identity and install time are
// kept.
func (ins *Installer) Apply(sel *Selection, m *manifest.Manifest) (*Result, error) {
	start := time.Now()

	diff, err := ins.Plan(sel)
	if err != nil {
		return nil, err
	}

	const total = 3
	ins.step(1, total, fmt.Sprintf("Removing %d plugins", len(diff.Removed)))
	if len(diff.Removed) > 0 {
		if err := ins.runGroup(sel, diff.Removed, ins.Tool.Remove); err != nil {
			return nil, fmt.Errorf("remove: %w", err)
		}
	}

	ins.step(2, total, fmt.Sprintf("Installing %d plugins via %s", len(diff.Added), ins.Tool.Name()))
	if len(diff.Added) > 0 {
		if err := ins.runGroup(sel, diff.Added, ins.Tool.Install); err != nil {
			return nil, fmt.Errorf("install: %w", err)
		}
	}

	ins.step(3, total, "Writing install record")
	rec := config.NewRecord(sel.InstallDir, sel.ConfigDir, sel.Plugins, m)
	if sel.AlreadyInstalled {
		if prev, err := config.Read(sel.InstallDir); err == nil {
			rec.InstallID = prev.InstallID
			rec.InstalledAt = prev.InstalledAt
		} else {
			ins.Log.Warnf("previous install record unreadable, starting a new one: %v", err)
		}
	}
	if err := config.Write(sel.InstallDir, rec); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}

	return &Result{
		InstallDir: sel.InstallDir,
		RecordPath: config.RecordPath(sel.InstallDir),
		Diff:       diff,
		Duration:   time.Since(start),
	}, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (ins *Installer) step(n, total int, label string) {
	ins.Log.Printf("[%d/%d] %s", n, total, label)
	if ins.OnStep != nil {
		ins.OnStep(n, total, label)
	}
}

// runGroup drives a tool operation, draining progress lines to the log and
// forwarding each line to OnLine if set. It waits for the drain goroutine to
// finish before returning so no output is lost.
func (ins *Installer) runGroup(sel *Selection, ids []string, op func(string, string, []string, chan<- plugintool.Progress) error) error {
	ch := make(chan plugintool.Progress, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range ch {
			if p.Done {
				if p.Error != nil {
					ins.Log.Warnf("%s: %v", p.Plugin, p.Error)
				}
				continue
			}
			if p.Line == "" {
				continue
			}
			ins.Log.Debugf("%s: %s", p.Plugin, p.Line)
			if ins.OnLine != nil {
				ins.OnLine(p.Line)
			}
		}
	}()
	err := op(sel.InstallDir, sel.ConfigDir, ids, ch)
	close(ch)
	<-done
	return err
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
