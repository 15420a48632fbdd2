package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/san-kum/smpsim/internal/experiment"
)

// RenderReport draws one row per scenario of a finished batch, followed by
// the total cost and, for optimize-all batches, the shared coefficients.
func RenderReport(report *experiment.Report) string {
	headers := []string{"#", "SCENARIO", "COST", "SETTLING", "OVERSHOOT", "EFFORT", "PARAMS"}
	rows := make([][]string, 0, len(report.Outcomes))
	failed := make(map[int]bool)
	for i, o := range report.Outcomes {
		row := []string{fmt.Sprint(i), o.Spec.String()}
		if o.Err != nil {
			failed[i] = true
			row = append(row, "-", "-", "-", "-", o.Err.Error())
		} else {
			row = append(row,
				fmt.Sprintf("%.4g", o.Cost),
				formatSeconds(o.Metrics["settling_time"]),
				fmt.Sprintf("%.3f V", o.Metrics["overshoot"]),
				fmt.Sprintf("%.3g", o.Metrics["setpoint_effort"]),
				formatParams(o.Params),
			)
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(CurrentTheme.Border)).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return style.Bold(true).Foreground(CurrentTheme.Primary)
			case failed[row]:
				return style.Foreground(CurrentTheme.Bad)
			case col == 2:
				return style.Foreground(CurrentTheme.Accent)
			}
			return style.Foreground(CurrentTheme.Text)
		}).
		Headers(headers...).
		Rows(rows...)

	var s strings.Builder
	s.WriteString(HeaderStyle.Render(fmt.Sprintf("%s  %s", strings.ToUpper(string(report.Law)), report.Variant)) + "\n")
	s.WriteString(t.Render() + "\n")
	s.WriteString(MetricLabel.Render("Succeeded") +
		MetricValue.Render(fmt.Sprintf("%d/%d", len(report.Succeeded()), len(report.Outcomes))) + "\n")
	s.WriteString(MetricLabel.Render("Total cost") + MetricValue.Render(fmt.Sprintf("%.6g", report.TotalCost())) + "\n")
	if res := report.Optimization; res != nil {
		s.WriteString(MetricLabel.Render("Evaluations") + MetricValue.Render(fmt.Sprint(res.Evaluations)) + "\n")
		s.WriteString(MetricLabel.Render("Optimized") + MetricValue.Render(res.String()) + "\n")
	}
	return s.String()
}

func formatSeconds(v float64) string {
	switch {
	case v == 0:
		return "0"
	case v < 1e-3:
		return fmt.Sprintf("%.1f µs", v*1e6)
	case v < 1:
		return fmt.Sprintf("%.2f ms", v*1e3)
	}
	return fmt.Sprintf("%.3f s", v)
}

func formatParams(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%.3g", name, params[name])
	}
	return strings.Join(parts, " ")
}
