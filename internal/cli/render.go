package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/okian/kpisync/internal/domain/model"
)

const labelWidth = 14

// Styles used by kpictl output.
type Styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	OK    lipgloss.Style
	Warn  lipgloss.Style
	Fail  lipgloss.Style
	Box   lipgloss.Style
	Muted lipgloss.Style
}

// NewStyles returns the kpictl palette. Plain styles render text unchanged.
func NewStyles(plain bool) Styles {
	if plain {
		s := lipgloss.NewStyle()
		return Styles{Title: s, Label: s.Width(labelWidth), OK: s, Warn: s, Fail: s, Box: s, Muted: s}
	}
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		Label: lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Width(labelWidth),
		OK:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00B050")),
		Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC000")),
		Fail:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

func (s Styles) row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.Label.Render(label), value)
}

func (s Styles) status(status string) string {
	if status == model.StatusSuccess {
		return s.OK.Render(status)
	}
	return s.Fail.Render(status)
}

// RenderResult formats a sync result.
func RenderResult(s Styles, res model.Result) string {
	lines := []string{
		s.Title.Render("KPI sync"),
		s.row("status", s.status(res.Status)),
		s.row("individual", fmt.Sprintf("%d ok, %d failed, %d skipped",
			res.Individual.Success, res.Individual.Failed, res.Individual.Skipped)),
		s.row("team leader", fmt.Sprintf("%d synced, %d formatted",
			res.TeamLeader.Synced, res.TeamLeader.Formatted)),
	}
	if res.Error != "" {
		lines = append(lines, s.row("error", s.Fail.Render(res.Error)))
	}
	if len(res.PendingChanges) > 0 {
		lines = append(lines, "", s.Warn.Render("Manual action required:"))
		for _, p := range res.PendingChanges {
			lines = append(lines, fmt.Sprintf("  %s %d row(s) in %s (%s)", p.Action, p.RowCount, p.Sheet, p.Team))
		}
	}
	return s.Box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderHealth formats a health response.
func RenderHealth(s Styles, h Health) string {
	status := s.OK.Render(h.Status)
	if h.Status != "healthy" {
		status = s.Fail.Render(h.Status)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		s.row("status", status),
		s.row("version", h.Version),
		s.row("timestamp", s.Muted.Render(h.Timestamp)),
	)
}

// RenderRanges formats resolved billing ranges.
func RenderRanges(s Styles, subject string, year int, ranges []Range) string {
	lines := []string{s.Title.Render(fmt.Sprintf("%s, %d", subject, year))}
	for _, r := range ranges {
		months := string(r.From)
		if r.To != r.From {
			months += "-" + string(r.To)
		}
		if r.Average {
			months += " +avg"
		}
		regime := r.Regime
		if r.Static {
			regime += s.Muted.Render(" (static)")
		}
		lines = append(lines, s.row(months, regime+"  "+bands(r.Thresholds)))
	}
	return s.Box.Render(strings.Join(lines, "\n"))
}

func bands(b model.BillingThresholds) string {
	if b.GreenMin.IsZero() && b.BlueAbove.IsZero() {
		return "no thresholds"
	}
	return fmt.Sprintf("red <%s  green %s-%s  blue >%s",
		b.GreenMin.String(), b.GreenMin.String(), b.GreenMax.String(), b.BlueAbove.String())
}
