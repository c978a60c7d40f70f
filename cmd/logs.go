package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/kb-labs/es-install/internal/logger"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show install logs",
	Long: `Show the most recent installation log.
Use --follow to stream new lines as they are written.`,
	RunE: runLogs,
}

var flagFollow bool

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolVarP(&flagFollow, "follow", "f", false, "follow log output (like tail -f)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	installDir, err := resolveInstallDir(cmd)
	if err != nil {
		return err
	}

	logPath := logger.LatestLogPath(installDir)
	if logPath == "" {
		return fmt.Errorf("no install logs found in %s", logger.LogsDir(installDir))
	}

	f, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	// Print existing content.
	if _, err := io.Copy(os.Stdout, f); err != nil {
		return err
	}

	if !flagFollow {
		return nil
	}
	return follow(cmd, f, os.Stdout)
}

// follow copies whatever is appended to f into w until the command context
// is cancelled or the watcher fails.
func follow(cmd *cobra.Command, f *os.File, w io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch log: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(f.Name()); err != nil {
		return fmt.Errorf("watch log: %w", err)
	}

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) {
				if _, err := io.Copy(w, f); err != nil {
					return err
				}
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch log: %w", err)
		}
	}
}
