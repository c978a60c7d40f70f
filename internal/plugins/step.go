// Package plugins holds the plugin selection step of the installer wizard.
// A Step tracks the catalog of selectable plugins and translates between
// per-plugin checkbox state and the flat list of selected identifiers that
// unattended installs pass on the command line.
package plugins

import (
	"fmt"
	"strings"
)

// UnchangedMoniker is the sentinel meaning "leave the selection as it is".
// It is never a real plugin identifier.
const UnchangedMoniker = "__unchanged__"

// Plugin is a single catalog entry.
type Plugin struct {
	URL         string // stable identifier, also what the plugin tool installs
	Name        string
	Description string
	Selected    bool
}

// CatalogFunc returns the plugins available for selection, in display order.
type CatalogFunc func() ([]Plugin, error)

// StateProvider reports which plugins an existing installation already has.
type StateProvider interface {
	InstalledPlugins(installDir, configDir string) ([]string, error)
}

// InstallState is supplied by the surrounding wizard before Refresh.
type InstallState struct {
	AlreadyInstalled bool
	InstallDirectory string
	ConfigDirectory  string
}

// Option configures a Step.
type Option func(*Step)

// WithDefaults overrides the fresh-install baseline returned by DefaultPlugins.
func WithDefaults(fn func() []string) Option {
	return func(s *Step) { s.defaults = fn }
}

// WithValidator sets the rule behind Valid and Validate.
func WithValidator(fn func(*Step) error) Option {
	return func(s *Step) { s.validator = fn }
}

// WithHeader sets the title the wizard shows for this step.
func WithHeader(h string) Option {
	return func(s *Step) { s.header = h }
}

// Step is the plugin selection state holder. It is owned by a single
// goroutine and does no locking.
type Step struct {
	catalog   CatalogFunc
	state     StateProvider
	defaults  func() []string
	validator func(*Step) error
	header    string

	install   InstallState
	available []Plugin
	listeners []func()
	refreshed bool
}

// NewStep creates a step that fetches its catalog from catalog and, on
// upgrades, its baseline selection from state.
func NewStep(catalog CatalogFunc, state StateProvider, opts ...Option) *Step {
	s := &Step{
		catalog: catalog,
		state:   state,
		header:  "Plugins",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Header returns the step title.
func (s *Step) Header() string { return s.header }

// InstallState returns the installer state last passed to SetInstallState.
func (s *Step) InstallState() InstallState { return s.install }

// SetInstallState records the scalar installer inputs used by Refresh.
func (s *Step) SetInstallState(st InstallState) { s.install = st }

// Refreshed reports whether the last Refresh succeeded.
func (s *Step) Refreshed() bool { return s.refreshed }

// OnChange registers fn to be called after every mutation of the catalog
// or the selection.
func (s *Step) OnChange(fn func()) {
	s.listeners = append(s.listeners, fn)
}

// Refresh replaces the catalog and seeds the selection: DefaultPlugins on a
// fresh install, the installed plugins reported by the state provider on an
// upgrade. Errors from either collaborator are returned as is.
func (s *Step) Refresh() error {
	hadPlugins := len(s.available) > 0
	s.available = nil
	s.refreshed = false

	fetched, err := s.catalog()
	if err != nil {
		if hadPlugins {
			s.notify()
		}
		return err
	}
	s.available = make([]Plugin, 0, len(fetched))
	for _, p := range fetched {
		p.Selected = false
		s.available = append(s.available, p)
	}

	var baseline []string
	if !s.install.AlreadyInstalled {
		baseline = s.DefaultPlugins()
	} else {
		if s.state == nil {
			s.notify()
			return fmt.Errorf("no plugin state provider configured")
		}
		baseline, err = s.state.InstalledPlugins(s.install.InstallDirectory, s.install.ConfigDirectory)
		if err != nil {
			s.notify()
			return err
		}
	}

	want := toSet(baseline)
	for i := range s.available {
		if want[s.available[i].URL] {
			s.available[i].Selected = true
		}
	}
	s.refreshed = true
	s.notify()
	return nil
}

// DefaultPlugins returns the baseline selection for a fresh install.
// Without WithDefaults it is the unchanged sentinel, which matches no
// catalog entry.
func (s *Step) DefaultPlugins() []string {
	if s.defaults != nil {
		return s.defaults()
	}
	return []string{UnchangedMoniker}
}

// AvailablePlugins returns a copy of the catalog in catalog order.
func (s *Step) AvailablePlugins() []Plugin {
	out := make([]Plugin, len(s.available))
	copy(out, s.available)
	return out
}

// Plugins returns the identifiers of the selected plugins in catalog order.
func (s *Step) Plugins() []string {
	var ids []string
	for _, p := range s.available {
		if p.Selected {
			ids = append(ids, p.URL)
		}
	}
	return ids
}

// SetPlugins selects exactly the catalog entries named in ids.
//
// A nil slice and the single-element list {UnchangedMoniker} leave the
// selection untouched. Identifiers that match no catalog entry are ignored,
// so an empty non-nil slice clears the selection.
func (s *Step) SetPlugins(ids []string) {
	if ids == nil {
		return
	}
	if len(ids) == 1 && ids[0] == UnchangedMoniker {
		return
	}

	want := toSet(ids)
	changed := false
	for i := range s.available {
		sel := want[s.available[i].URL]
		if s.available[i].Selected != sel {
			s.available[i].Selected = sel
			changed = true
		}
	}
	if changed {
		s.notify()
	}
}

// Toggle flips the checkbox of the i-th catalog entry. Out of range
// indexes are ignored.
func (s *Step) Toggle(i int) {
	if i < 0 || i >= len(s.available) {
		return
	}
	s.available[i].Selected = !s.available[i].Selected
	s.notify()
}

// SetSelected sets the checkbox of the entry identified by url and reports
// whether such an entry exists.
func (s *Step) SetSelected(url string, selected bool) bool {
	for i := range s.available {
		if s.available[i].URL != url {
			continue
		}
		if s.available[i].Selected != selected {
			s.available[i].Selected = selected
			s.notify()
		}
		return true
	}
	return false
}

// Validate runs the configured validator. A step without one is always valid.
func (s *Step) Validate() error {
	if s.validator == nil {
		return nil
	}
	return s.validator(s)
}

// Valid reports whether Validate returns nil.
func (s *Step) Valid() bool { return s.Validate() == nil }

// String renders a diagnostic dump for install logs.
func (s *Step) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%T\n", *s)
	fmt.Fprintf(&b, "- IsValid = %t\n", s.Valid())
	fmt.Fprintf(&b, "- Plugins = %s\n", strings.Join(s.Plugins(), ", "))
	return b.String()
}

func (s *Step) notify() {
	for _, fn := range s.listeners {
		fn()
	}
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
