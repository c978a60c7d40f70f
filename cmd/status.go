package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kb-labs/es-install/internal/config"
	"github.com/kb-labs/es-install/internal/manifest"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show installation status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	installDir, err := resolveInstallDir(cmd)
	if err != nil {
		return err
	}

	rec, err := config.Read(installDir)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  %s %s\n\n", labelStyle.Render("Install:  "), valStyle.Render(rec.InstallDir))
	fmt.Printf("  %s %s\n", labelStyle.Render("Config:   "), valStyle.Render(rec.ConfigDir))
	fmt.Printf("  %s %s\n", labelStyle.Render("Version:  "), rec.ProductVersion)
	fmt.Printf("  %s %s\n", labelStyle.Render("Install ID:"), dimStyle.Render(rec.InstallID))
	fmt.Printf("  %s %s\n", labelStyle.Render("Installed:"), rec.InstalledAt.Format("2006-01-02 15:04"))
	fmt.Printf("  %s %s\n", labelStyle.Render("Updated:  "), rec.UpdatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("  %s %s\n\n", labelStyle.Render("Manifest: "), rec.Manifest.Version)

	selected := rec.PluginList()
	fmt.Printf("  %s\n", labelStyle.Render("Plugins:"))
	if len(selected) == 0 {
		fmt.Printf("    %s\n", dimStyle.Render("none"))
	}
	for _, id := range selected {
		fmt.Printf("    %s %-24s  %s\n", okStyle.Render("●"), id, dimStyle.Render(describe(&rec.Manifest, id)))
	}

	fmt.Println()
	return nil
}

func describe(m *manifest.Manifest, id string) string {
	c, ok := m.Lookup(id)
	if !ok {
		return "(not in catalog)"
	}
	return c.Description
}
