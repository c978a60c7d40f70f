package cmd

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb-labs/es-install/internal/answers"
	"github.com/kb-labs/es-install/internal/manifest"
	"github.com/kb-labs/es-install/internal/plugins"
)

// newTestCmd returns a command carrying the same flags as the root command.
func newTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	addGlobalFlags(c)
	addInstallFlags(c)
	require.NoError(t, c.ParseFlags(args))
	return c
}

func strPtr(s string) *string { return &s }

func TestMergeInputsDefaults(t *testing.T) {
	in := mergeInputs(newTestCmd(t), nil, nil)
	assert.Equal(t, []string{plugins.UnchangedMoniker}, in.plugins)
	assert.False(t, in.yes)
	assert.Empty(t, in.installDir)
}

func TestMergeInputsAnswersOnly(t *testing.T) {
	a := &answers.Answers{
		InstallDir: "/opt/es",
		ConfigDir:  "/etc/es",
		Yes:        true,
		Plugins:    strPtr("analysis-icu,mapper-size"),
	}
	in := mergeInputs(newTestCmd(t), nil, a)
	assert.Equal(t, "/opt/es", in.installDir)
	assert.Equal(t, "/etc/es", in.configDir)
	assert.True(t, in.yes)
	assert.Equal(t, []string{"analysis-icu", "mapper-size"}, in.plugins)
}

func TestMergeInputsFlagsWin(t *testing.T) {
	a := &answers.Answers{
		InstallDir:     "/opt/es",
		ConfigDir:      "/etc/es",
		ProductVersion: "7.17.0",
		Plugins:        strPtr("analysis-icu"),
	}
	c := newTestCmd(t,
		"--install-dir", "/srv/es",
		"--config-dir", "/srv/es/conf",
		"--product-version", "8.15.0",
		"--plugins", "mapper-size",
		"-y",
	)
	in := mergeInputs(c, nil, a)
	assert.Equal(t, "/srv/es", in.installDir)
	assert.Equal(t, "/srv/es/conf", in.configDir)
	assert.Equal(t, "8.15.0", in.productVersion)
	assert.Equal(t, []string{"mapper-size"}, in.plugins)
	assert.True(t, in.yes)
}

func TestMergeInputsPositionalInstallDir(t *testing.T) {
	in := mergeInputs(newTestCmd(t, "--install-dir", "/srv/es"), []string{"/data/es"}, nil)
	assert.Equal(t, "/data/es", in.installDir)
}

func TestMergeInputsEmptyPluginsClears(t *testing.T) {
	in := mergeInputs(newTestCmd(t, "--plugins", ""), nil, nil)
	assert.NotNil(t, in.plugins)
	assert.Empty(t, in.plugins)
}

func TestNewStepUsesManifestDefaults(t *testing.T) {
	m, err := loadManifest("", "")
	require.NoError(t, err)

	step := newStep(m, "", nil)
	require.NoError(t, step.Refresh())
	assert.Equal(t, m.DefaultIDs(), step.Plugins())
}

func TestNewStepValidatesRequirements(t *testing.T) {
	m := &manifest.Manifest{Plugins: []manifest.Component{
		{ID: "base"},
		{ID: "addon", Requires: []string{"base"}},
	}}
	step := newStep(m, "", nil)
	require.NoError(t, step.Refresh())

	step.SetPlugins([]string{"addon"})
	assert.Error(t, step.Validate())
}

func TestFollowCopiesAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "install.log")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Seek(0, io.SeekEnd)
	require.NoError(t, err)

	c := &cobra.Command{}
	ctx, cancel := contextWithTimeout(2 * time.Second)
	defer cancel()
	c.SetContext(ctx)

	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- follow(c, f, &out) }()

	require.Eventually(t, func() bool {
		w, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return false
		}
		w.WriteString("second\n")
		w.Close()
		return strings.Contains(out.String(), "second")
	}, time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
