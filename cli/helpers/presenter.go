package helpers

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/common-nighthawk/go-figure"

	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/guide"
)

var (
	accentColor  = lipgloss.Color("#04B575")
	failureColor = lipgloss.Color("#FF6B6B")
	mutedColor   = lipgloss.Color("#888888")
	warnColor    = lipgloss.Color("#F2C94C")
)

type presenterStyles struct {
	banner  lipgloss.Style
	title   lipgloss.Style
	muted   lipgloss.Style
	step    lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warn    lipgloss.Style
}

func newPresenterStyles(color bool) presenterStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return presenterStyles{plain, plain, plain, plain, plain, plain, plain}
	}
	return presenterStyles{
		banner:  lipgloss.NewStyle().Foreground(accentColor).Bold(true),
		title:   lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(mutedColor),
		step:    lipgloss.NewStyle().Foreground(accentColor).Bold(true),
		success: lipgloss.NewStyle().Foreground(accentColor),
		failure: lipgloss.NewStyle().Foreground(failureColor).Bold(true),
		warn:    lipgloss.NewStyle().Foreground(warnColor),
	}
}

// Presenter prints guide progress line by line. Events may arrive from
// several task jobs at once; each one is written whole.
type Presenter struct {
	mu     sync.Mutex
	out    io.Writer
	styles presenterStyles
	narrow bool
	width  int
}

func NewPresenter(out io.Writer, color, narrow bool, width int) *Presenter {
	return &Presenter{out: out, styles: newPresenterStyles(color), narrow: narrow, width: width}
}

func (p *Presenter) Title(title, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if banner := Banner(title, p.width); banner != "" && !p.narrow {
		fmt.Fprintln(p.out, p.styles.banner.Render(banner))
	} else if title != "" {
		fmt.Fprintln(p.out, p.styles.title.Render(title))
	}
	if description != "" {
		fmt.Fprintln(p.out, p.styles.muted.Render(description))
	}
	fmt.Fprintln(p.out)
}

func (p *Presenter) Notice(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, p.styles.muted.Render(message))
}

func (p *Presenter) Event(e guide.Event) {
	line := p.render(e)
	if line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func (p *Presenter) render(e guide.Event) string {
	s := p.styles
	switch e.Kind {
	case guide.StepStarted:
		return s.step.Render("▸ " + e.Step)
	case guide.StepPaused:
		return s.muted.Render("  paused before " + e.Step)
	case guide.StepFinished:
		if e.Status == core.StatusError {
			return s.failure.Render("  " + e.Step + " incomplete")
		}
		return ""
	}
	if e.Task == nil || (e.Quiet && e.Kind != guide.TaskFailed) {
		return ""
	}
	summary := e.Task.Summary()
	if p.narrow {
		summary = truncate(summary, max(p.width-6, 10))
	}
	switch e.Kind {
	case guide.TaskRunning:
		return "  … " + summary
	case guide.TaskSucceeded:
		return s.success.Render("  ✓ " + summary)
	case guide.TaskSkipped:
		return s.muted.Render("  ✓ " + summary + " (already done)")
	case guide.TaskReady:
		return s.success.Render("  ✓ " + summary + " (ready)")
	case guide.TaskNotReady:
		return s.warn.Render("  • " + summary + " (not ready)")
	case guide.TaskPlanned:
		return s.muted.Render("  ○ " + summary)
	case guide.TaskAborted:
		return s.muted.Render("  ⊘ " + summary + " (not run)")
	case guide.TaskFailed:
		line := s.failure.Render("  ✗ " + summary)
		if e.Err != nil {
			line += "\n" + s.muted.Render("    "+e.Err.Error())
		}
		return line
	}
	return ""
}

func (p *Presenter) Summary(success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
	if success {
		fmt.Fprintln(p.out, p.styles.success.Render("Guidebook successful"))
		return
	}
	fmt.Fprintln(p.out, p.styles.failure.Render("Guidebook incomplete"))
}

// Banner renders title as ASCII art, or returns "" when it would not fit
// in width columns.
func Banner(title string, width int) string {
	if title == "" {
		return ""
	}
	art := figure.NewFigure(title, "standard", false).String()
	for _, line := range strings.Split(art, "\n") {
		if lipgloss.Width(line) > width {
			return ""
		}
	}
	return strings.TrimRight(art, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
