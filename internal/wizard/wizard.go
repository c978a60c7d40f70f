// Package wizard implements the interactive Bubble Tea TUI for es-install.
// The wizard walks through three stages: directory inputs, plugin
// selection, and a final confirmation screen. The plugin stage is a view
// over a plugins.Step; entering it refreshes the step for the chosen
// directories. When Options.Yes is true the TUI is skipped entirely and Run
// returns the selection the step computes on its own.
package wizard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kb-labs/es-install/internal/config"
	"github.com/kb-labs/es-install/internal/installer"
	"github.com/kb-labs/es-install/internal/plugins"
)

// Options controls wizard behaviour.
type Options struct {
	// DefaultInstallDir pre-fills the install directory input.
	DefaultInstallDir string
	// DefaultConfigDir pre-fills the config directory input. Empty means
	// <install dir>/config.
	DefaultConfigDir string
	// Plugins is applied to the step after each Refresh. Nil keeps the
	// selection the step seeded.
	Plugins []string
	// Installed reports whether a directory already holds an installation.
	// Defaults to config.Exists.
	Installed func(installDir string) bool
	// Yes skips the TUI.
	Yes bool
}

// Run shows the interactive wizard and returns the user's selection.
// If opts.Yes is true, returns the step's selection without launching the TUI.
func Run(step *plugins.Step, opts Options) (*installer.Selection, error) {
	if opts.Installed == nil {
		opts.Installed = config.Exists
	}
	if opts.Yes {
		return unattended(step, opts)
	}

	model := newModel(step, opts)
	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	result := final.(wizardModel)
	if result.cancelled {
		return nil, fmt.Errorf("installation cancelled")
	}
	return result.toSelection(), nil
}

// ── styles ────────────────────────────────────────────────────────────────────

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sectionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	focusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle     = dimStyle
)

// ── model stages ─────────────────────────────────────────────────────────────

type stage int

const (
	stageDirs    stage = iota // entering install/config dirs
	stagePlugins              // choosing plugins
	stageConfirm              // confirm / cancel
)

// selectionStatus is kept current by a step change listener.
type selectionStatus struct {
	selected int
	invalid  error
}

type wizardModel struct {
	step         *plugins.Step
	status       *selectionStatus
	opts         Options
	errMsg       string
	installInput textinput.Model
	configInput  textinput.Model
	stage        stage
	activeInput  int
	cursor       int
	cancelled    bool
	confirmed    bool
}

func newModel(step *plugins.Step, opts Options) wizardModel {
	installDir := opts.DefaultInstallDir
	if installDir == "" {
		home, _ := os.UserHomeDir()
		installDir = filepath.Join(home, "elasticsearch")
	}

	ii := textinput.New()
	ii.Placeholder = "~/elasticsearch"
	ii.SetValue(installDir)
	ii.Focus()
	ii.Width = 50

	ci := textinput.New()
	ci.Placeholder = "<install dir>/config"
	ci.SetValue(opts.DefaultConfigDir)
	ci.Width = 50

	status := &selectionStatus{}
	step.OnChange(func() {
		status.selected = len(step.Plugins())
		status.invalid = step.Validate()
	})

	return wizardModel{
		step:         step,
		status:       status,
		opts:         opts,
		stage:        stageDirs,
		installInput: ii,
		configInput:  ci,
	}
}

// ── tea.Model interface ───────────────────────────────────────────────────────

func (m wizardModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(key)
	}
	// forward to active input
	var cmd tea.Cmd
	if m.stage == stageDirs {
		if m.activeInput == 0 {
			m.installInput, cmd = m.installInput.Update(msg)
		} else {
			m.configInput, cmd = m.configInput.Update(msg)
		}
	}
	return m, cmd
}

func (m wizardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.stage {
	case stageDirs:
		return m.handleDirsKey(msg)
	case stagePlugins:
		return m.handlePluginsKey(msg)
	case stageConfirm:
		return m.handleConfirmKey(msg)
	}
	return m, nil
}

func (m wizardModel) handleDirsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	case "tab", "down":
		m.activeInput = 1 - m.activeInput
		if m.activeInput == 0 {
			m.installInput.Focus()
			m.configInput.Blur()
		} else {
			m.configInput.Focus()
			m.installInput.Blur()
		}
		return m, textinput.Blink
	case "enter":
		if err := m.validateDirs(); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		if m.dirsChanged() {
			if err := prepare(m.step, m.installDir(), m.configDir(), m.opts); err != nil {
				m.errMsg = err.Error()
				return m, nil
			}
		}
		m.errMsg = ""
		m.stage = stagePlugins
		m.cursor = 0
		return m, nil
	}
	var cmd tea.Cmd
	if m.activeInput == 0 {
		m.installInput, cmd = m.installInput.Update(msg)
	} else {
		m.configInput, cmd = m.configInput.Update(msg)
	}
	return m, cmd
}

func (m wizardModel) handlePluginsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	total := len(m.step.AvailablePlugins())
	switch msg.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < total-1 {
			m.cursor++
		}
	case " ":
		m.step.Toggle(m.cursor)
	case "b", "backspace":
		m.stage = stageDirs
	case "enter":
		if m.status.invalid != nil {
			m.errMsg = m.status.invalid.Error()
			return m, nil
		}
		m.errMsg = ""
		m.stage = stageConfirm
	}
	return m, nil
}

func (m wizardModel) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc", "n", "N":
		m.cancelled = true
		return m, tea.Quit
	case "b", "backspace":
		m.stage = stagePlugins
	case "enter", "y", "Y":
		m.confirmed = true
		return m, tea.Quit
	}
	return m, nil
}

// dirsChanged reports whether the step still has to be refreshed for the
// directories in the inputs. Coming back to an unchanged dirs stage keeps the
// user's toggles.
func (m wizardModel) dirsChanged() bool {
	if !m.step.Refreshed() {
		return true
	}
	st := m.step.InstallState()
	return st.InstallDirectory != m.installDir() ||
		st.ConfigDirectory != resolveConfigDir(m.installDir(), m.configDir())
}

func (m wizardModel) validateDirs() error {
	if strings.TrimSpace(m.installInput.Value()) == "" {
		return fmt.Errorf("install directory is required")
	}
	return nil
}

func (m wizardModel) installDir() string {
	return expandHome(strings.TrimSpace(m.installInput.Value()))
}

func (m wizardModel) configDir() string {
	return expandHome(strings.TrimSpace(m.configInput.Value()))
}

// ── View ──────────────────────────────────────────────────────────────────────

func (m wizardModel) View() string {
	switch m.stage {
	case stageDirs:
		return m.viewDirs()
	case stagePlugins:
		return m.viewPlugins()
	case stageConfirm:
		return m.viewConfirm()
	}
	return ""
}

func (m wizardModel) viewDirs() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("  es-install") + "  node installer\n\n")

	b.WriteString("  " + sectionStyle.Render("Install directory") + "\n")
	b.WriteString("  " + m.installInput.View() + "\n")
	b.WriteString(dimStyle.Render("  Where the distribution lives; an existing install is upgraded\n\n"))

	b.WriteString("  " + sectionStyle.Render("Config directory") + "\n")
	b.WriteString("  " + m.configInput.View() + "\n")
	b.WriteString(dimStyle.Render("  Node configuration; leave empty for <install dir>/config\n\n"))

	if m.errMsg != "" {
		b.WriteString("  " + errorStyle.Render("✖ "+m.errMsg) + "\n\n")
	}

	b.WriteString(helpStyle.Render("  tab switch · enter next · esc quit"))
	return b.String()
}

func (m wizardModel) viewPlugins() string {
	var b strings.Builder
	mode := "fresh install"
	if m.step.InstallState().AlreadyInstalled {
		mode = "upgrade: installed plugins pre-selected"
	}
	b.WriteString(titleStyle.Render("  es-install") + "  select plugins " + dimStyle.Render("("+mode+")") + "\n\n")

	b.WriteString("  " + sectionStyle.Render("─── "+m.step.Header()+" ───") + "\n")
	available := m.step.AvailablePlugins()
	if len(available) == 0 {
		b.WriteString("  " + dimStyle.Render("  no plugins available for this version") + "\n")
	}
	for i, p := range available {
		b.WriteString(m.renderItem(i, p))
	}
	b.WriteString("\n")
	b.WriteString("  " + dimStyle.Render(fmt.Sprintf("%d of %d selected", m.status.selected, len(available))) + "\n\n")

	if m.errMsg != "" {
		b.WriteString("  " + errorStyle.Render("✖ "+m.errMsg) + "\n\n")
	}

	b.WriteString(helpStyle.Render("  ↑↓ move · space toggle · enter next · b back · esc quit"))
	return b.String()
}

func (m wizardModel) renderItem(idx int, p plugins.Plugin) string {
	cursor := "  "
	if idx == m.cursor {
		cursor = focusStyle.Render(" ▶")
	}
	check := "○"
	style := normalStyle
	if p.Selected {
		check = selectedStyle.Render("◉")
		style = selectedStyle
	}
	return fmt.Sprintf("%s %s  %-24s  %s\n",
		cursor, check,
		style.Render(p.URL),
		dimStyle.Render(p.Description),
	)
}

func (m wizardModel) viewConfirm() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("  es-install") + "  ready to install\n\n")
	b.WriteString(fmt.Sprintf("  Install:  %s\n", focusStyle.Render(m.installDir())))
	b.WriteString(fmt.Sprintf("  Config:   %s\n\n", focusStyle.Render(resolveConfigDir(m.installDir(), m.configDir()))))

	if selected := m.step.Plugins(); len(selected) > 0 {
		b.WriteString("  Plugins:  " + strings.Join(selected, ", ") + "\n\n")
	} else {
		b.WriteString("  Plugins:  " + dimStyle.Render("none") + "\n\n")
	}

	b.WriteString(helpStyle.Render("  Press enter to install · b back · n to cancel"))
	return b.String()
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (m wizardModel) toSelection() *installer.Selection {
	return selectionFrom(m.step)
}

// prepare hands the directories to the step, refreshes it and applies the
// preset plugin list.
func prepare(step *plugins.Step, installDir, configDir string, opts Options) error {
	step.SetInstallState(plugins.InstallState{
		AlreadyInstalled: opts.Installed(installDir),
		InstallDirectory: installDir,
		ConfigDirectory:  resolveConfigDir(installDir, configDir),
	})
	if err := step.Refresh(); err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}
	step.SetPlugins(opts.Plugins)
	return nil
}

func unattended(step *plugins.Step, opts Options) (*installer.Selection, error) {
	installDir := opts.DefaultInstallDir
	if installDir == "" {
		home, _ := os.UserHomeDir()
		installDir = filepath.Join(home, "elasticsearch")
	}
	if err := prepare(step, expandHome(installDir), expandHome(opts.DefaultConfigDir), opts); err != nil {
		return nil, err
	}
	if err := step.Validate(); err != nil {
		return nil, fmt.Errorf("plugin selection: %w", err)
	}
	return selectionFrom(step), nil
}

func selectionFrom(step *plugins.Step) *installer.Selection {
	st := step.InstallState()
	return &installer.Selection{
		InstallDir:       st.InstallDirectory,
		ConfigDir:        st.ConfigDirectory,
		Plugins:          step.Plugins(),
		Managed:          installer.CatalogIDs(step.AvailablePlugins()),
		AlreadyInstalled: st.AlreadyInstalled,
	}
}

func resolveConfigDir(installDir, configDir string) string {
	if configDir != "" {
		return configDir
	}
	return filepath.Join(installDir, "config")
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
