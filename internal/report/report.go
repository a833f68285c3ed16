// Package report formats speech analysis data as markdown and renders it for
// the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/hay-kot/parley/internal/core/speech"
)

const (
	barWidth   = 20
	dateLayout = "2006-01-02 15:04"
)

// Render renders markdown for a terminal of the given width. On renderer
// failure the markdown is returned unchanged.
func Render(md string, width int) string {
	if width <= 0 {
		width = 80
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("tokyo-night"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}

	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// Result formats a single analysis.
func Result(r speech.AnalysisResult) string {
	var b strings.Builder

	b.WriteString("# Analysis\n\n")
	if r.SessionID != "" {
		fmt.Fprintf(&b, "Session `%s`\n\n", r.SessionID)
	}

	fmt.Fprintf(&b, "| Grammar | Fluency |\n|---|---|\n| %s | %s |\n\n",
		score(r.GrammarScore), score(r.AverageFluency()))

	if r.Transcription != "" {
		b.WriteString("## Transcription\n\n")
		b.WriteString(quote(r.Transcription))
	}

	if r.CorrectedText != "" && r.CorrectedText != r.Transcription {
		b.WriteString("## Corrected\n\n")
		b.WriteString(quote(r.CorrectedText))
	}

	if len(r.Errors) > 0 {
		b.WriteString("## Corrections\n\n")
		writeErrors(&b, r.Errors)
	}

	if len(r.FluencyScores) > 0 {
		b.WriteString("## Fluency\n\n```\n")
		for _, seg := range r.FluencyScores {
			fmt.Fprintf(&b, "%6.1fs-%6.1fs %s %5.1f\n", seg.StartTime, seg.EndTime, bar(seg.Score), seg.Score)
		}
		b.WriteString("```\n\n")
	}

	if r.CorrectedAudioURL != "" {
		fmt.Fprintf(&b, "Corrected audio: `%s`\n", r.CorrectedAudioFile())
	}

	return b.String()
}

// Dashboard formats the aggregate summary.
func Dashboard(d speech.Dashboard) string {
	var b strings.Builder

	b.WriteString("# Dashboard\n\n")
	fmt.Fprintf(&b, "| Sessions | Avg. grammar | Avg. fluency |\n|---|---|---|\n| %d | %s | %s |\n\n",
		d.SessionCount, score(d.AverageGrammar), score(d.AverageFluency))

	if len(d.RecentErrors) > 0 {
		b.WriteString("## Recent corrections\n\n")
		writeErrors(&b, d.RecentErrors)
	}

	return b.String()
}

// History formats sessions as a table, in the order given.
func History(sessions []speech.Session) string {
	var b strings.Builder

	b.WriteString("# History\n\n")
	if len(sessions) == 0 {
		b.WriteString("No sessions recorded yet.\n")
		return b.String()
	}

	b.WriteString("| # | Date | Grammar | Fluency | Transcription |\n|---|---|---|---|---|\n")
	for _, s := range sessions {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			s.ID,
			s.CreatedAt.Local().Format(dateLayout),
			score(s.GrammarScore),
			score(s.AverageFluency()),
			cell(s.Transcription, 48),
		)
	}

	return b.String()
}

// Analytics formats derived trends and the recent score chart.
func Analytics(a speech.Analytics) string {
	var b strings.Builder

	b.WriteString("# Analytics\n\n")
	if a.TotalSessions == 0 {
		b.WriteString("No sessions recorded yet.\n")
		return b.String()
	}

	b.WriteString("| Sessions | Streak | Best grammar | Best fluency | Grammar trend | Fluency trend |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n\n",
		a.TotalSessions,
		days(a.Streak),
		score(a.BestGrammar),
		score(a.BestFluency),
		signed(a.GrammarTrend),
		signed(a.FluencyTrend),
	)

	b.WriteString("## Recent sessions\n\n```\n")
	for _, p := range a.Chart {
		fmt.Fprintf(&b, "%s  G %s %5.1f\n", p.Date.Local().Format("01-02"), bar(p.Grammar), p.Grammar)
		fmt.Fprintf(&b, "       F %s %5.1f\n", bar(p.Fluency), p.Fluency)
	}
	b.WriteString("```\n")

	return b.String()
}

func writeErrors(b *strings.Builder, errs []speech.GrammarError) {
	for _, e := range errs {
		label := e.Type
		if label == "" {
			label = "correction"
		}
		fmt.Fprintf(b, "- **%s**: ~~%s~~ → %s\n", label, inline(e.Original), inline(e.Corrected))
	}
	b.WriteString("\n")
}

func score(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func signed(v float64) string {
	return fmt.Sprintf("%+.1f", v)
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// bar draws a 0-100 score as a fixed width bar.
func bar(v float64) string {
	n := int(v / 100 * barWidth)
	n = max(0, min(barWidth, n))
	return strings.Repeat("█", n) + strings.Repeat("░", barWidth-n)
}

func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n") + "\n\n"
}

func inline(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
}

// cell flattens s for a table cell and truncates it to n runes.
func cell(s string, n int) string {
	s = strings.ReplaceAll(inline(s), "|", "\\|")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
