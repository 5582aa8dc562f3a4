// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// markdown rendering) for innotree CLI commands.
package cliui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KindStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	KeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	HeaderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Spinner animates a single status line until Stop is called. The message
// may change while it spins.
type Spinner struct {
	w     io.Writer
	mu    sync.Mutex
	msg   string
	start time.Time
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewSpinner starts a spinner on w.
func NewSpinner(w io.Writer, msg string) *Spinner {
	s := &Spinner{w: w, msg: msg, start: time.Now(), done: make(chan struct{})}
	s.wg.Add(1)
	go s.spin()
	return s
}

func (s *Spinner) spin() {
	defer s.wg.Done()
	frame := 0
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		fmt.Fprintf(s.w, "\r\033[K  %s %s",
			spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
			s.msg,
		)
		s.mu.Unlock()

		select {
		case <-s.done:
			return
		case <-ticker.C:
			frame++
		}
	}
}

// Update replaces the spinner message.
func (s *Spinner) Update(msg string) {
	s.mu.Lock()
	s.msg = msg
	s.mu.Unlock()
}

// Stop ends the animation and prints a ✓ or ✗ line with the elapsed time.
func (s *Spinner) Stop(err error) {
	close(s.done)
	s.wg.Wait()

	fmt.Fprintf(s.w, "\r\033[K  %s %s %s\n",
		Mark(err),
		s.msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(time.Since(s.start)))),
	)
}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	s := NewSpinner(w, msg)
	err := fn()
	s.Stop(err)
	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// IdeaMarkdown lays out the final idea of a search under its topic.
func IdeaMarkdown(topic, idea string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", topic)
	if idea == "" {
		b.WriteString("_No idea was produced._\n")
		return b.String()
	}
	b.WriteString(idea)
	b.WriteString("\n")
	return b.String()
}

// RenderMarkdown renders markdown content for terminal display using glamour.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
