package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kb-labs/es-install/internal/answers"
	"github.com/kb-labs/es-install/internal/installer"
	"github.com/kb-labs/es-install/internal/logger"
	"github.com/kb-labs/es-install/internal/plugins"
	"github.com/kb-labs/es-install/internal/plugintool"
	"github.com/kb-labs/es-install/internal/wizard"
)

func init() {
	addInstallFlags(rootCmd)
}

func addInstallFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolP("yes", "y", false, "skip wizard and install with defaults")
	f.String("config-dir", "", "node configuration directory (default <install-dir>/config)")
	f.String("plugins", plugins.UnchangedMoniker,
		"comma-separated plugin ids to install; "+plugins.UnchangedMoniker+" keeps the default or installed set")
	f.String("answers", "", "TOML answer file for unattended installs")
}

// installInputs is the merged view of flags and the answer file.
type installInputs struct {
	installDir     string
	configDir      string
	productVersion string
	catalogURL     string
	plugins        []string
	yes            bool
}

// mergeInputs applies the answer file first and lets explicitly set flags win.
func mergeInputs(cmd *cobra.Command, args []string, a *answers.Answers) installInputs {
	in := installInputs{
		plugins: []string{plugins.UnchangedMoniker},
	}
	if a != nil {
		in.installDir = a.InstallDir
		in.configDir = a.ConfigDir
		in.productVersion = a.ProductVersion
		in.catalogURL = a.CatalogURL
		in.yes = a.Yes
		if pl := a.PluginList(); pl != nil {
			in.plugins = pl
		}
	}

	flags := cmd.Flags()
	if p, _ := flags.GetString("install-dir"); p != "" {
		in.installDir = p
	}
	if len(args) > 0 {
		in.installDir = args[0]
	}
	if flags.Changed("config-dir") {
		in.configDir, _ = flags.GetString("config-dir")
	}
	if flags.Changed("product-version") {
		in.productVersion, _ = flags.GetString("product-version")
	}
	if flags.Changed("catalog-url") {
		in.catalogURL, _ = flags.GetString("catalog-url")
	}
	if flags.Changed("plugins") {
		list, _ := flags.GetString("plugins")
		in.plugins = plugins.ParseList(list)
	}
	if yes, _ := flags.GetBool("yes"); yes {
		in.yes = true
	}
	return in
}

func runInstall(cmd *cobra.Command, args []string) error {
	var a *answers.Answers
	if path, _ := cmd.Flags().GetString("answers"); path != "" {
		loaded, err := answers.Load(path)
		if err != nil {
			return err
		}
		a = loaded
	}
	in := mergeInputs(cmd, args, a)

	if in.installDir != "" {
		abs, err := filepath.Abs(in.installDir)
		if err != nil {
			return err
		}
		in.installDir = abs
	}

	m, err := loadManifest(in.catalogURL, catalogFile(cmd))
	if err != nil {
		return err
	}

	tool := plugintool.Detect()
	step := newStep(m, in.productVersion, tool)

	// Show wizard or use defaults.
	sel, err := wizard.Run(step, wizard.Options{
		Yes:               in.yes,
		DefaultInstallDir: in.installDir,
		DefaultConfigDir:  in.configDir,
		Plugins:           in.plugins,
	})
	if err != nil {
		return err // includes "cancelled"
	}

	if err := os.MkdirAll(sel.InstallDir, 0o755); err != nil {
		return fmt.Errorf("create install dir: %w", err)
	}

	// Set up logger (writes to stderr + log file).
	log, err := logger.New(sel.InstallDir)
	if err != nil {
		return err
	}
	defer log.Close()

	logManifest(log, m)
	log.Printf("%d plugins offered", len(step.AvailablePlugins()))
	if unknown := installer.UnknownIDs(in.plugins, step.AvailablePlugins()); len(unknown) > 0 {
		log.Warnf("Ignoring unknown plugins: %s", strings.Join(unknown, ", "))
	}
	log.Printf("Selection:\n%s", step)

	fmt.Println()
	sp := newSpinner()
	ins := &installer.Installer{
		Tool: tool,
		Log:  log,
		OnStep: func(n, total int, label string) {
			sp.setLabel(fmt.Sprintf("[%d/%d] %s", n, total, label))
		},
		OnLine: sp.setDetail,
	}

	sp.start()
	result, err := ins.Apply(sel, m)
	sp.stop(err)

	if err != nil {
		return fmt.Errorf("installation failed: %w", err)
	}

	printSuccess(result, sel)
	return nil
}

// ── success banner ────────────────────────────────────────────────────────────

func printSuccess(r *installer.Result, sel *installer.Selection) {
	verb := "Installation"
	if sel.AlreadyInstalled {
		verb = "Upgrade"
	}

	fmt.Println()
	fmt.Println(titleStyle.Render("✓ "+verb+" complete") + dimStyle.Render(fmt.Sprintf("  (%s)", r.Duration.Round(time.Second))))
	fmt.Println()
	fmt.Printf("  Install:  %s\n", valStyle.Render(r.InstallDir))
	fmt.Printf("  Config:   %s\n", valStyle.Render(sel.ConfigDir))
	fmt.Printf("  Record:   %s\n", valStyle.Render(r.RecordPath))
	if len(sel.Plugins) > 0 {
		fmt.Printf("  Plugins:  %s\n", strings.Join(sel.Plugins, ", "))
	}
	printDiff(r.Diff)
}
