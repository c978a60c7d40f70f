package plugintool

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// confEnv points the plugin tool at the node's config directory.
const confEnv = "ES_PATH_CONF"

// CLI implements Tool by running <installDir>/bin/<Binary>.
type CLI struct {
	Binary string
}

func (c *CLI) Name() string { return c.Binary }

func (c *CLI) Install(installDir, configDir string, ids []string, progress chan<- Progress) error {
	for _, id := range ids {
		if err := c.run(installDir, configDir, id, progress, "install", "--batch", id); err != nil {
			return fmt.Errorf("install %s: %w", id, err)
		}
	}
	return nil
}

func (c *CLI) Remove(installDir, configDir string, ids []string, progress chan<- Progress) error {
	for _, id := range ids {
		if err := c.run(installDir, configDir, id, progress, "remove", id); err != nil {
			return fmt.Errorf("remove %s: %w", id, err)
		}
	}
	return nil
}

// InstalledPlugins asks the tool for its plugin list. Without a tool binary
// (a partially laid out or foreign install) it scans the plugins directory.
func (c *CLI) InstalledPlugins(installDir, configDir string) ([]string, error) {
	bin := c.binPath(installDir)
	if _, err := os.Stat(bin); err != nil {
		return ScanDir(installDir)
	}

	cmd := exec.Command(bin, "list")
	cmd.Dir = installDir
	cmd.Env = c.env(configDir)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s list: %w", c.Binary, err)
	}
	return parseList(string(out)), nil
}

// ScanDir lists the non-hidden directories under <installDir>/plugins,
// sorted by name. A missing plugins directory means nothing is installed.
func ScanDir(installDir string) ([]string, error) {
	entries, err := os.ReadDir(PluginsDir(installDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plugins dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// parseList reads `list` output: one plugin id per line, warnings prefixed
// with a dash or "WARNING" are skipped.
func parseList(out string) []string {
	var ids []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "WARNING") {
			continue
		}
		ids = append(ids, line)
	}
	return ids
}

func (c *CLI) binPath(installDir string) string {
	return filepath.Join(installDir, "bin", c.Binary)
}

func (c *CLI) env(configDir string) []string {
	env := os.Environ()
	if configDir != "" {
		env = append(env, confEnv+"="+configDir)
	}
	return env
}

func (c *CLI) run(installDir, configDir, id string, progress chan<- Progress, args ...string) error {
	cmd := exec.Command(c.binPath(installDir), args...)
	cmd.Dir = installDir
	cmd.Env = c.env(configDir)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", c.Binary, err)
	}

	// stream both stdout and stderr as progress lines
	done := make(chan struct{}, 2)
	pipe := func(r io.Reader) {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) != "" {
				progress <- Progress{Plugin: id, Line: line}
			}
		}
		done <- struct{}{}
	}
	go pipe(stdout)
	go pipe(stderr)
	<-done
	<-done

	err = cmd.Wait()
	progress <- Progress{Plugin: id, Done: true, Error: err}
	return err
}
