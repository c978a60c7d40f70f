package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// detailWidth keeps tool output on a single terminal line.
const detailWidth = 72

// spinner renders a rotating indicator with a label and a detail line
// that updates in-place while plugins are installed.
type spinner struct {
	mu     sync.Mutex
	label  string
	detail string
	done   chan struct{}
}

func newSpinner() *spinner { return &spinner{done: make(chan struct{})} }

func (s *spinner) setLabel(l string) {
	s.mu.Lock()
	s.label = l
	s.mu.Unlock()
}

func (s *spinner) setDetail(d string) {
	d = ansi.Truncate(d, detailWidth, "...")
	s.mu.Lock()
	s.detail = d
	s.mu.Unlock()
}

func (s *spinner) snapshot() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label, s.detail
}

// start launches the render loop in a goroutine.
func (s *spinner) start() {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	go func() {
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				label, detail := s.snapshot()
				// \r returns to column 0, \033[K clears to end of line; the
				// trailing \033[1A lets the next tick overwrite both lines.
				fmt.Printf("\r\033[K  %s %s\n\r\033[K    %s\033[1A",
					frames[i%len(frames)], label, dim.Render(detail))
			}
		}
	}()
}

// stop halts the spinner and prints a final status line.
func (s *spinner) stop(err error) {
	close(s.done)
	time.Sleep(90 * time.Millisecond) // let last frame finish

	label, _ := s.snapshot()

	// Clear both lines used by the spinner.
	fmt.Print("\r\033[K\033[1B\r\033[K\033[1A")

	if err == nil {
		fmt.Printf("  %s %s\n", okStyle.Render("✓"), label)
	} else {
		fmt.Printf("  %s %s\n", badStyle.Render("✗"), label)
	}
}
