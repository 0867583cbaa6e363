package stats

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"genalg/internal/model"
)

var (
	accentColor = lipgloss.Color("#7C3AED")
	mutedColor  = lipgloss.Color("#6B7280")
	goodColor   = lipgloss.Color("#10B981")

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(22)

	valueStyle = lipgloss.NewStyle().
			Foreground(goodColor)
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// RenderSummary renders a boxed overview of a run and its best-fitness trend.
func RenderSummary(run model.RunRecord, history []model.GenerationRecord) string {
	var stats model.Statistics
	if len(history) > 0 {
		stats = history[len(history)-1].Statistics
	} else {
		stats = model.NewStatistics()
	}

	rows := []string{
		titleStyle.Render(fmt.Sprintf("run %s", run.ID)),
		row("problem", run.Problem),
		row("population", fmt.Sprintf("%d", run.PopulationSize)),
		row("mutation / crossover", fmt.Sprintf("%.3g / %.3g", run.Settings.MutationWeight, run.Settings.CrossoverWeight)),
		row("elite protected", fmt.Sprintf("%t", run.Settings.EliteProtected)),
		row("step", fmt.Sprintf("%d", stats.Step)),
		row("current max / mean", fmt.Sprintf("%s / %s", number(stats.CurrentMax), number(stats.CurrentMean))),
		row("all-time max / min", fmt.Sprintf("%s / %s", number(stats.TotalMax), number(stats.TotalMin))),
		row("mutations", fmt.Sprintf("%d", stats.TotalMutations)),
		row("crossovers", fmt.Sprintf("%d", stats.TotalCrossovers)),
		row("improved by x / m / both", fmt.Sprintf("%d / %d / %d",
			stats.ImprovementsThroughCrossover,
			stats.ImprovementsThroughMutation,
			stats.ImprovementsThroughBoth,
		)),
	}
	if len(history) > 0 {
		rows = append(rows, row("best fitness", Sparkline(MaxSeries(history), 40)))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// RenderRuns renders one line per run.
func RenderRuns(runs []model.RunRecord) string {
	if len(runs) == 0 {
		return labelStyle.UnsetWidth().Render("no runs")
	}
	lines := make([]string, 0, len(runs)+1)
	lines = append(lines, titleStyle.Render(fmt.Sprintf("%-36s  %-8s  %5s  %s", "RUN", "PROBLEM", "SIZE", "CREATED")))
	for _, run := range runs {
		lines = append(lines, fmt.Sprintf("%-36s  %-8s  %5d  %s",
			run.ID, run.Problem, run.PopulationSize, run.CreatedAt.Format("2006-01-02 15:04:05")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Sparkline scales values into block characters, keeping at most width of
// the most recent values.
func Sparkline(values []float64, width int) string {
	if width > 0 && len(values) > width {
		values = values[len(values)-width:]
	}
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkRunes)-1))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func number(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4g", v)
}
