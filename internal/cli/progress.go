package cli

import (
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/mkessel/trident/internal/jobs"
	"github.com/mkessel/trident/internal/models"
)

const pollInterval = 500 * time.Millisecond

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the job status.
type tickMsg time.Time

// jobUpdateMsg carries the updated job record.
type jobUpdateMsg struct {
	record models.JobRecord
	err    error
}

// progressModel is the bubbletea model for job progress.
type progressModel struct {
	registry *jobs.Registry
	jobID    string
	record   models.JobRecord
	loaded   bool
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(registry *jobs.Registry, jobID string) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		registry: registry,
		jobID:    jobID,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchJob()

	case jobUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch job status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.record = msg.record
		m.loaded = true

		switch m.record.Status {
		case models.JobStatusCompleted:
			m.done = true
			return m, tea.Quit
		case models.JobStatusFailed, models.JobStatusCancelled:
			m.done = true
			m.err = fmt.Errorf("%s", m.record.Message)
			return m, tea.Quit
		}

		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}
	if !m.loaded {
		return "Loading job status...\n"
	}

	pct := float64(m.record.Progress) / 100
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.record.Status))
	progressBar := m.progress.ViewAs(pct)

	detail := fmt.Sprintf("%d/%d documents", m.record.FilesCompleted, m.record.TotalFiles)
	if m.record.CurrentFile != "" {
		detail += fmt.Sprintf("  %s: %s", m.record.CurrentPhase, m.record.CurrentFile)
	}
	if m.record.TimeRemaining != "" {
		detail += "  ~" + m.record.TimeRemaining
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s\n%s\n%s\n", status, progressBar, detail, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nJob %s continues in background.\nUse 'trident jobs %s' to check status.\n",
			m.jobID, m.jobID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
	}

	output := m.theme.completedStyle().Render("✓ Completed") + "\n\n"
	output += "  " + m.record.Message + "\n"
	for _, f := range m.record.Files {
		if f.Status == models.FileStatusFailed {
			output += m.theme.errorStyle().Render(fmt.Sprintf("  ✗ %s: %s\n", f.Name, f.Error))
		}
	}
	return output
}

// fetchJob reads the current job record. Runs as a command to keep Update()
// non-blocking.
func (m progressModel) fetchJob() tea.Cmd {
	return func() tea.Msg {
		record, err := m.registry.Get(m.jobID)
		return jobUpdateMsg{record: record, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunJobProgress runs the interactive progress UI for a job.
// Returns nil on success or Ctrl+C (job continues), error on job failure.
func RunJobProgress(registry *jobs.Registry, jobID string) error {
	p := tea.NewProgram(newProgressModel(registry, jobID))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}
	return nil
}
