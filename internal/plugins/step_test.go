package plugins

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── fakes ────────────────────────────────────────────────────────────────────

type fakeState struct {
	ids        []string
	err        error
	installDir string
	configDir  string
	calls      int
}

func (f *fakeState) InstalledPlugins(installDir, configDir string) ([]string, error) {
	f.calls++
	f.installDir = installDir
	f.configDir = configDir
	return f.ids, f.err
}

func catalogOf(ids ...string) CatalogFunc {
	return func() ([]Plugin, error) {
		out := make([]Plugin, len(ids))
		for i, id := range ids {
			out[i] = Plugin{URL: id}
		}
		return out, nil
	}
}

func refreshed(t *testing.T, s *Step) *Step {
	t.Helper()
	require.NoError(t, s.Refresh())
	return s
}

// ── Refresh ──────────────────────────────────────────────────────────────────

func TestRefreshCountMatchesCatalog(t *testing.T) {
	for _, ids := range [][]string{nil, {"a"}, {"a", "b", "c"}} {
		s := refreshed(t, NewStep(catalogOf(ids...), &fakeState{}))
		assert.Len(t, s.AvailablePlugins(), len(ids))
	}
}

func TestRefreshReplacesCatalog(t *testing.T) {
	calls := 0
	catalog := func() ([]Plugin, error) {
		calls++
		if calls == 1 {
			return []Plugin{{URL: "a"}, {URL: "b"}}, nil
		}
		return []Plugin{{URL: "c"}}, nil
	}
	s := refreshed(t, NewStep(catalog, nil, WithDefaults(func() []string { return []string{"a"} })))
	require.Equal(t, []string{"a"}, s.Plugins())

	require.NoError(t, s.Refresh())
	got := s.AvailablePlugins()
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].URL)
	assert.Empty(t, s.Plugins())
}

func TestRefreshFreshInstallDefaultSentinelSelectsNothing(t *testing.T) {
	state := &fakeState{ids: []string{"a"}}
	s := refreshed(t, NewStep(catalogOf("a", "b"), state))

	assert.Empty(t, s.Plugins())
	assert.Zero(t, state.calls, "state provider must not be queried on fresh install")
}

func TestRefreshFreshInstallUsesDefaults(t *testing.T) {
	s := NewStep(catalogOf("a", "b", "c"), nil,
		WithDefaults(func() []string { return []string{"c", "a", "missing"} }))
	refreshed(t, s)

	assert.Equal(t, []string{"a", "c"}, s.Plugins())
}

func TestRefreshUpgradeUsesInstalledPlugins(t *testing.T) {
	state := &fakeState{ids: []string{"b", "gone"}}
	s := NewStep(catalogOf("a", "b"), state,
		WithDefaults(func() []string { return []string{"a"} }))
	s.SetInstallState(InstallState{
		AlreadyInstalled: true,
		InstallDirectory: "/opt/es",
		ConfigDirectory:  "/etc/es",
	})
	refreshed(t, s)

	assert.Equal(t, []string{"b"}, s.Plugins())
	assert.Equal(t, "/opt/es", state.installDir)
	assert.Equal(t, "/etc/es", state.configDir)
}

func TestRefreshIgnoresCatalogSelectedFlag(t *testing.T) {
	catalog := func() ([]Plugin, error) {
		return []Plugin{{URL: "a", Selected: true}}, nil
	}
	s := refreshed(t, NewStep(catalog, nil))
	assert.Empty(t, s.Plugins())
}

func TestRefreshCatalogErrorPropagates(t *testing.T) {
	boom := errors.New("catalog unavailable")
	ok := true
	catalog := func() ([]Plugin, error) {
		if ok {
			return []Plugin{{URL: "a"}}, nil
		}
		return nil, boom
	}
	s := refreshed(t, NewStep(catalog, nil))
	require.True(t, s.Refreshed())
	ok = false

	err := s.Refresh()
	assert.Same(t, boom, err)
	assert.Empty(t, s.AvailablePlugins())
	assert.False(t, s.Refreshed(), "a failed refresh clears the refreshed flag")
}

func TestRefreshStateErrorPropagates(t *testing.T) {
	boom := errors.New("cannot read plugins dir")
	s := NewStep(catalogOf("a", "b"), &fakeState{err: boom})
	s.SetInstallState(InstallState{AlreadyInstalled: true})

	err := s.Refresh()
	assert.Same(t, boom, err)
	assert.Len(t, s.AvailablePlugins(), 2)
	assert.Empty(t, s.Plugins())
	assert.False(t, s.Refreshed())
}

func TestRefreshUpgradeWithoutProvider(t *testing.T) {
	s := NewStep(catalogOf("a"), nil)
	s.SetInstallState(InstallState{AlreadyInstalled: true})
	assert.Error(t, s.Refresh())
}

// ── Plugins / SetPlugins ─────────────────────────────────────────────────────

func TestSetPluginsExample(t *testing.T) {
	s := refreshed(t, NewStep(catalogOf("analysis-icu", "analysis-kuromoji"), nil))
	s.SetPlugins([]string{"analysis-icu"})
	assert.Equal(t, []string{"analysis-icu"}, s.Plugins())
}

func TestSetPluginsNilIsNoop(t *testing.T) {
	s := refreshed(t, NewStep(catalogOf("a", "b"), nil))
	s.SetPlugins([]string{"b"})

	s.SetPlugins(nil)
	assert.Equal(t, []string{"b"}, s.Plugins())
}

func TestSetPluginsUnchangedIsNoop(t *testing.T) {
	s := refreshed(t, NewStep(catalogOf("a", "b", "c"), nil))
	s.SetPlugins([]string{"a", "c"})

	s.SetPlugins([]string{UnchangedMoniker})
	assert.Equal(t, []string{"a", "c"}, s.Plugins())
}

func TestSetPluginsUnchangedAmongOthersIsIgnored(t *testing.T) {
	s := refreshed(t, NewStep(catalogOf("a", "b"), nil))
	s.SetPlugins([]string{"a"})

	s.SetPlugins([]string{UnchangedMoniker, "b"})
	assert.Equal(t, []string{"b"}, s.Plugins())
}

func TestSetPluginsSelectsExactlyAndIsIdempotent(t *testing.T) {
	s := refreshed(t, NewStep(catalogOf("a", "b", "c"), nil))
	s.SetPlugins([]string{"a", "b"})

	in := []string{"c", "a"}
	s.SetPlugins(in)
	first := s.AvailablePlugins()
	s.SetPlugins(in)

	assert.Equal(t, first, s.AvailablePlugins())
	assert.Equal(t, []string{"a", "c"}, s.Plugins(), "order follows the catalog")
}

func TestSetPluginsUnknownIgnored(t *testing.T) {
	s := refreshed(t, NewStep(catalogOf("a"), nil))
	s.SetPlugins([]string{"nope", "a"})
	assert.Equal(t, []string{"a"}, s.Plugins())
}

func TestSetPluginsEmptyClears(t *testing.T) {
	s := refreshed(t, NewStep(catalogOf("a", "b"), nil))
	s.SetPlugins([]string{"a", "b"})

	s.SetPlugins([]string{})
	assert.Empty(t, s.Plugins())
}

func TestPluginsBeforeRefresh(t *testing.T) {
	s := NewStep(catalogOf("a"), nil)
	assert.Empty(t, s.Plugins())
	assert.Empty(t, s.AvailablePlugins())
	s.SetPlugins([]string{"a"})
	assert.Empty(t, s.Plugins())
}

func TestAvailablePluginsReturnsCopy(t *testing.T) {
	s := refreshed(t, NewStep(catalogOf("a"), nil))
	got := s.AvailablePlugins()
	got[0].Selected = true
	assert.Empty(t, s.Plugins())
}

// ── Toggle / SetSelected ─────────────────────────────────────────────────────

func TestToggle(t *testing.T) {
	s := refreshed(t, NewStep(catalogOf("a", "b"), nil))
	s.Toggle(1)
	assert.Equal(t, []string{"b"}, s.Plugins())
	s.Toggle(1)
	assert.Empty(t, s.Plugins())

	s.Toggle(-1)
	s.Toggle(2)
	assert.Empty(t, s.Plugins())
}

func TestSetSelected(t *testing.T) {
	s := refreshed(t, NewStep(catalogOf("a", "b"), nil))
	assert.True(t, s.SetSelected("b", true))
	assert.False(t, s.SetSelected("zzz", true))
	assert.Equal(t, []string{"b"}, s.Plugins())
}

// ── OnChange ─────────────────────────────────────────────────────────────────

func TestOnChangeNotifiesAfterMutation(t *testing.T) {
	s := NewStep(catalogOf("a", "b"), nil)
	var seen [][]string
	s.OnChange(func() { seen = append(seen, s.Plugins()) })

	refreshed(t, s)
	s.SetPlugins([]string{"a"})
	s.SetPlugins([]string{"a"}) // no change, no notification
	s.SetPlugins(nil)
	s.SetPlugins([]string{UnchangedMoniker})
	s.Toggle(1)

	require.Len(t, seen, 3)
	assert.Nil(t, seen[0])
	assert.Equal(t, []string{"a"}, seen[1])
	assert.Equal(t, []string{"a", "b"}, seen[2])
}

// ── validation / String ──────────────────────────────────────────────────────

func TestValidWithoutValidator(t *testing.T) {
	s := NewStep(catalogOf(), nil)
	assert.True(t, s.Valid())
	assert.NoError(t, s.Validate())
}

func TestValidatorIsApplied(t *testing.T) {
	s := NewStep(catalogOf("a"), nil, WithValidator(func(s *Step) error {
		if len(s.Plugins()) == 0 {
			return errors.New("select at least one plugin")
		}
		return nil
	}))
	refreshed(t, s)
	assert.False(t, s.Valid())
	s.Toggle(0)
	assert.True(t, s.Valid())
}

func TestString(t *testing.T) {
	s := refreshed(t, NewStep(catalogOf("a", "b"), nil))
	s.SetPlugins([]string{"a", "b"})

	lines := strings.Split(strings.TrimRight(s.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "plugins.Step", lines[0])
	assert.Equal(t, "- IsValid = true", lines[1])
	assert.Equal(t, "- Plugins = a, b", lines[2])
}

func TestHeader(t *testing.T) {
	assert.Equal(t, "Plugins", NewStep(catalogOf(), nil).Header())
	assert.Equal(t, "Extras", NewStep(catalogOf(), nil, WithHeader("Extras")).Header())
}

// ── ParseList / FormatList ───────────────────────────────────────────────────

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseList(" a, ,b ,"))
	assert.Equal(t, []string{UnchangedMoniker}, ParseList(UnchangedMoniker))

	empty := ParseList("")
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "a,b", FormatList([]string{"a", "b"}))
	assert.Equal(t, "", FormatList(nil))
}
