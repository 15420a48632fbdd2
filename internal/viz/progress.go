package viz

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/smpsim/internal/optim"
)

const (
	historyCapacity = 300
	barWidth        = 40
)

type TickMsg time.Time

// ProgressMsg carries one optimizer evaluation.
type ProgressMsg optim.Progress

// DoneMsg ends the view; Err is the optimization error, if any.
type DoneMsg struct{ Err error }

// ProgressModel shows the evaluations and the best cost of a running
// optimization.
type ProgressModel struct {
	title    string
	maxEvals int
	start    time.Time

	last     optim.Progress
	best     []float64
	costs    []float64
	frame    int
	done     bool
	canceled bool
	err      error

	updates  <-chan optim.Progress
	finished <-chan struct{}
	runErr   *error
	cancel   context.CancelFunc
}

// NewProgressModel returns a model that is fed with Update calls only.
// RunOptimization wires it to a live optimizer.
func NewProgressModel(title string, maxEvals int) ProgressModel {
	return ProgressModel{title: title, maxEvals: maxEvals, start: time.Now()}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func waitProgress(ch <-chan optim.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return ProgressMsg(p)
	}
}

// waitDone reads *errp only after done is closed.
func waitDone(done <-chan struct{}, errp *error) tea.Cmd {
	return func() tea.Msg {
		<-done
		return DoneMsg{Err: *errp}
	}
}

func (m ProgressModel) Init() tea.Cmd {
	cmds := []tea.Cmd{tick()}
	if m.updates != nil {
		cmds = append(cmds, waitProgress(m.updates))
	}
	if m.finished != nil {
		cmds = append(cmds, waitDone(m.finished, m.runErr))
	}
	return tea.Batch(cmds...)
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.canceled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "t":
			NextTheme()
		}
	case ProgressMsg:
		m.record(optim.Progress(msg))
		if m.updates != nil {
			return m, waitProgress(m.updates)
		}
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	case TickMsg:
		m.frame++
		if !m.done {
			return m, tick()
		}
	}
	return m, nil
}

func (m *ProgressModel) record(p optim.Progress) {
	m.last = p
	if !math.IsInf(p.Best, 0) && !math.IsNaN(p.Best) {
		m.best = appendCapped(m.best, p.Best)
	}
	if !math.IsInf(p.Cost, 0) && !math.IsNaN(p.Cost) {
		m.costs = appendCapped(m.costs, p.Cost)
	}
}

func appendCapped(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > historyCapacity {
		s = s[len(s)-historyCapacity:]
	}
	return s
}

func (m ProgressModel) fraction() float64 {
	if m.maxEvals <= 0 {
		return 0
	}
	return float64(m.last.Evaluations) / float64(m.maxEvals)
}

func (m ProgressModel) View() string {
	var s strings.Builder

	status := StatusWarn.Render(AnimatedSpinner(m.frame) + " OPTIMIZING")
	switch {
	case m.canceled:
		status = StatusBad.Render("CANCELED")
	case m.err != nil:
		status = StatusBad.Render("FAILED: " + m.err.Error())
	case m.done:
		status = StatusGood.Render("DONE")
	}
	s.WriteString(HeaderStyle.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(status + "\n\n")

	s.WriteString(MetricLabel.Render("Evaluations") +
		MetricValue.Render(fmt.Sprintf("%d/%d", m.last.Evaluations, m.maxEvals)) + "\n")
	s.WriteString(ProgressBar(m.fraction(), barWidth) + "\n\n")
	s.WriteString(MetricLabel.Render("Best cost") + MetricValue.Render(fmt.Sprintf("%.6g", m.last.Best)) + "\n")
	s.WriteString(MetricLabel.Render("Last cost") + MetricValue.Render(fmt.Sprintf("%.6g", m.last.Cost)) + "\n")
	s.WriteString(MetricLabel.Render("Elapsed") +
		MetricValue.Render(time.Since(m.start).Truncate(100*time.Millisecond).String()) + "\n\n")

	if len(m.best) > 0 {
		s.WriteString(MetricLabel.Render("Best history") + Sparkline(m.best, barWidth) + "\n\n")
	}
	if len(m.costs) > 1 {
		chart := asciigraph.Plot(m.costs, asciigraph.Height(6), asciigraph.Width(barWidth), asciigraph.Caption("cost per evaluation"))
		s.WriteString(chart + "\n\n")
	}
	s.WriteString(KeyHint.Render("q: cancel   t: theme"))
	return Panel.Render(s.String())
}

// RunOptimization runs fn in the background and shows its progress until it
// returns or the user cancels. fn must report through the callback it is
// given and honor ctx.
func RunOptimization(ctx context.Context, title string, maxEvals int, fn func(ctx context.Context, progress func(optim.Progress)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan optim.Progress, 64)
	finished := make(chan struct{})
	var runErr error

	go func() {
		defer close(finished)
		runErr = fn(ctx, func(p optim.Progress) {
			select {
			case updates <- p:
			default:
			}
		})
	}()

	m := NewProgressModel(title, maxEvals)
	m.updates = updates
	m.finished = finished
	m.runErr = &runErr
	m.cancel = cancel

	_, err := tea.NewProgram(m).Run()
	cancel()
	<-finished
	if err != nil {
		return err
	}
	return runErr
}
