package downloader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shortsget/shortsget/internal/request"
)

var (
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type progressMsg struct {
	state   State
	written int64
	total   int64
}

type doneMsg struct {
	result *Result
	err    error
}

type tuiModel struct {
	spin    spinner.Model
	bar     progress.Model
	cancel  context.CancelFunc
	state   State
	written int64
	total   int64
	started time.Time
	done    bool
	err     error
}

func newTUIModel(cancel context.CancelFunc) tuiModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return tuiModel{
		spin:    s,
		bar:     progress.New(progress.WithDefaultGradient()),
		cancel:  cancel,
		started: time.Now(),
		total:   -1,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.cancel()
			return m, nil
		}
		return m, nil

	case progressMsg:
		m.state = msg.state
		m.written = msg.written
		m.total = msg.total
		if m.total > 0 {
			return m, m.bar.SetPercent(float64(m.written) / float64(m.total))
		}
		return m, nil

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		pm, cmd := m.bar.Update(msg)
		m.bar = pm.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.done {
		if m.err != nil {
			return errStyle.Render("✗ "+m.err.Error()) + "\n"
		}
		return labelStyle.Render("✓ done") +
			detailStyle.Render(fmt.Sprintf("  %s in %s", formatBytes(m.written),
				formatDuration(time.Since(m.started)))) + "\n"
	}

	var b strings.Builder
	b.WriteString(m.spin.View())
	b.WriteString(labelStyle.Render(m.state.String()))

	if m.state == StateFetching {
		b.WriteString("  ")
		if m.total > 0 {
			b.WriteString(m.bar.View())
			b.WriteString(detailStyle.Render(fmt.Sprintf("  %s / %s",
				formatBytes(m.written), formatBytes(m.total))))
		} else {
			b.WriteString(detailStyle.Render(formatBytes(m.written)))
		}
	}
	b.WriteString("\n")
	return b.String()
}

// DownloadTUI runs Download behind an interactive progress display.
// Ctrl+C cancels the in-flight work.
func (d *Downloader) DownloadTUI(ctx context.Context, req request.Request) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newTUIModel(cancel))

	d.OnProgress(func(state State, written, total int64) {
		p.Send(progressMsg{state: state, written: written, total: total})
	})

	var result *Result
	var err error
	finished := make(chan struct{})
	go func() {
		result, err = d.Download(ctx, req)
		close(finished)
		p.Send(doneMsg{result: result, err: err})
	}()

	if _, terr := p.Run(); terr != nil {
		// Terminal trouble should not lose the download outcome; stop
		// the work and report whatever Download produced.
		cancel()
	}
	<-finished

	return result, err
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "??:??"
	}
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	if m > 60 {
		h := m / 60
		m = m % 60
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
