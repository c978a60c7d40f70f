package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kb-labs/es-install/internal/config"
	"github.com/kb-labs/es-install/internal/installer"
	"github.com/kb-labs/es-install/internal/logger"
	"github.com/kb-labs/es-install/internal/plugins"
	"github.com/kb-labs/es-install/internal/plugintool"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Reconcile plugins of an installed node",
	Long: `Starts from the plugins installed on disk, applies --plugins if given,
shows what would change against the current catalog, and applies the
changes after confirmation.`,
	RunE: runUpgrade,
}

func init() {
	rootCmd.AddCommand(upgradeCmd)
	upgradeCmd.Flags().String("plugins", plugins.UnchangedMoniker, "comma-separated plugin ids to keep installed")
	upgradeCmd.Flags().BoolP("yes", "y", false, "apply without asking")
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	installDir, err := resolveInstallDir(cmd)
	if err != nil {
		return err
	}

	rec, err := config.Read(installDir)
	if err != nil {
		return err
	}

	catalogURL, _ := cmd.Flags().GetString("catalog-url")
	m, err := loadManifest(catalogURL, catalogFile(cmd))
	if err != nil {
		return err
	}

	log, err := logger.New(installDir)
	if err != nil {
		return err
	}
	defer log.Close()
	logManifest(log, m)

	tool := plugintool.Detect()
	productVersion, _ := cmd.Flags().GetString("product-version")
	step := newStep(m, productVersion, tool)
	step.SetInstallState(plugins.InstallState{
		AlreadyInstalled: true,
		InstallDirectory: installDir,
		ConfigDirectory:  rec.ConfigDir,
	})
	if err := step.Refresh(); err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}

	list, _ := cmd.Flags().GetString("plugins")
	requested := plugins.ParseList(list)
	if unknown := installer.UnknownIDs(requested, step.AvailablePlugins()); len(unknown) > 0 {
		log.Warnf("Ignoring unknown plugins: %s", strings.Join(unknown, ", "))
	}
	step.SetPlugins(requested)
	if err := step.Validate(); err != nil {
		return fmt.Errorf("plugin selection: %w", err)
	}
	log.Printf("Selection:\n%s", step)

	sel := &installer.Selection{
		InstallDir:       installDir,
		ConfigDir:        rec.ConfigDir,
		Plugins:          step.Plugins(),
		Managed:          installer.CatalogIDs(step.AvailablePlugins()),
		AlreadyInstalled: true,
	}
	ins := &installer.Installer{Tool: tool, Log: log}

	fmt.Println("Checking plugins...")
	diff, err := ins.Plan(sel)
	if err != nil {
		return err
	}

	if !diff.HasChanges() {
		fmt.Println(okStyle.Render("✓ Plugins already up to date"))
		return nil
	}

	printDiff(diff)

	if yes, _ := cmd.Flags().GetBool("yes"); !yes && !confirm("Apply changes? [Y/n] ") {
		fmt.Println("Cancelled.")
		return nil
	}

	result, err := ins.Apply(sel, m)
	if err != nil {
		return fmt.Errorf("upgrade failed: %w", err)
	}

	fmt.Printf("\n%s\n", titleStyle.Render("✓ Upgrade complete")+dimStyle.Render(fmt.Sprintf("  (%s)", result.Duration.Round(time.Second))))
	return nil
}

func printDiff(d *installer.PluginDiff) {
	if d == nil {
		return
	}
	fmt.Println()
	for _, p := range d.Added {
		fmt.Printf("  %s  %s\n", okStyle.Render("+"), p)
	}
	for _, p := range d.Kept {
		fmt.Printf("  %s  %s\n", updStyle.Render("="), dimStyle.Render(p))
	}
	for _, p := range d.Removed {
		fmt.Printf("  %s  %s\n", badStyle.Render("-"), p)
	}
	for _, p := range d.Unmanaged {
		fmt.Printf("  %s  %s\n", dimStyle.Render("~"), dimStyle.Render(p+" (not in catalog, left installed)"))
	}
	fmt.Println()
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	r := bufio.NewReader(os.Stdin)
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "" || line == "y" || line == "yes"
}
