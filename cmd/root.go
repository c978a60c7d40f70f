// Package cmd implements the es-install CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kb-labs/es-install/internal/config"
	"github.com/kb-labs/es-install/internal/logger"
	"github.com/kb-labs/es-install/internal/manifest"
	"github.com/kb-labs/es-install/internal/plugins"
	"github.com/kb-labs/es-install/internal/plugintool"
)

// SetVersionInfo is called from main.go with values injected at build time via -ldflags.
// It must be called before Execute().
func SetVersionInfo(version, commit, date string) {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"es-install %s (commit %s, built %s)\n", version, commit, date,
	))
	rootCmd.Version = version
}

var rootCmd = &cobra.Command{
	Use:   "es-install [install-dir]",
	Short: "Search node installer",
	Long: `es-install installs a search node distribution and manages its plugins.

Examples:
  es-install /opt/es                                interactive wizard
  es-install /opt/es --yes                          silent install with default plugins
  es-install /opt/es -y --plugins analysis-icu,mapper-size
  es-install --answers unattended.toml              answers from a TOML file
  es-install upgrade --install-dir /opt/es          re-apply plugins after an upgrade
  es-install status                                 show installation status
  es-install logs -f                                follow the install log`,
	RunE:         runInstall,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	addGlobalFlags(rootCmd)
}

func addGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.String("install-dir", "", "installation directory (overrides wizard default)")
	pf.String("catalog-url", "", "fetch the plugin manifest from this URL first")
	pf.String("catalog-file", "", "read the plugin manifest from this file")
	pf.String("product-version", "", "product version used to filter the plugin catalog")
}

func catalogFile(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("catalog-file")
	return p
}

// loadManifest follows the catalog flags, falling back to the embedded manifest.
func loadManifest(catalogURL, catalogFile string) (*manifest.Manifest, error) {
	m, err := manifest.Load(manifest.LoadOptions{
		RemoteURL:     catalogURL,
		LocalOverride: catalogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	return m, nil
}

func logManifest(log *logger.Logger, m *manifest.Manifest) {
	for _, reason := range m.Skipped {
		log.Warnf("Manifest source skipped: %s", reason)
	}
	log.Printf("Manifest %s for %s %s (%s)", m.Version, m.Product, m.ProductVersion, m.Source)
}

// newStep builds the plugin selection step over the manifest catalog, with
// the plugin tool as the source of already-installed plugins and the
// manifest's requirements as the validity rule.
func newStep(m *manifest.Manifest, productVersion string, tool plugintool.Tool) *plugins.Step {
	if productVersion == "" {
		productVersion = m.ProductVersion
	}
	return plugins.NewStep(m.Catalog(productVersion), tool,
		plugins.WithDefaults(m.DefaultIDs),
		plugins.WithValidator(m.Validator()),
	)
}

// resolveInstallDir returns the install dir from --install-dir or the current
// directory when it holds an install record.
func resolveInstallDir(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("install-dir"); p != "" {
		return p, nil
	}
	cwd, _ := os.Getwd()
	if rec, err := config.Read(cwd); err == nil {
		return rec.InstallDir, nil
	}
	return "", fmt.Errorf("install directory not specified: use --install-dir or run from the install directory")
}
