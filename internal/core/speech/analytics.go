package speech

import (
	"slices"
	"time"
)

const (
	// TrendWindow is the number of sessions in each comparison window.
	TrendWindow = 5
	// ChartWindow is the number of sessions plotted.
	ChartWindow = 10
)

// ChartPoint is one plotted session.
type ChartPoint struct {
	SessionID int
	Fluency   float64
	Grammar   float64
	Date      time.Time
}

// Analytics summarizes a user's history.
type Analytics struct {
	TotalSessions int
	FluencyTrend  float64
	GrammarTrend  float64
	BestGrammar   float64
	BestFluency   float64
	Streak        int
	Chart         []ChartPoint
}

// Analyze derives trends from sessions in any order. Sessions are ordered
// oldest first by creation time before windows are taken.
//
// The trend compares the mean of the most recent TrendWindow sessions with
// the mean of the TrendWindow sessions before them. With no earlier sessions
// the recent window is compared against itself, giving a zero trend.
func Analyze(sessions []Session) Analytics {
	if len(sessions) == 0 {
		return Analytics{}
	}

	ordered := slices.Clone(sessions)
	slices.SortStableFunc(ordered, func(a, b Session) int {
		return a.CreatedAt.Compare(b.CreatedAt.Time)
	})

	a := Analytics{TotalSessions: len(ordered)}

	for i, s := range ordered {
		fl := s.AverageFluency()
		if i == 0 || s.GrammarScore > a.BestGrammar {
			a.BestGrammar = s.GrammarScore
		}
		if i == 0 || fl > a.BestFluency {
			a.BestFluency = fl
		}
	}

	for _, s := range tail(ordered, ChartWindow) {
		a.Chart = append(a.Chart, ChartPoint{
			SessionID: s.ID,
			Fluency:   s.AverageFluency(),
			Grammar:   s.GrammarScore,
			Date:      s.CreatedAt.Time,
		})
	}

	latest, earlier := windows(ordered)
	a.FluencyTrend = trend(latest, earlier, Session.AverageFluency)
	a.GrammarTrend = trend(latest, earlier, func(s Session) float64 { return s.GrammarScore })
	a.Streak = streak(ordered)

	return a
}

// windows splits ordered into the latest TrendWindow sessions and the
// TrendWindow sessions preceding them.
func windows(ordered []Session) (latest, earlier []Session) {
	n := len(ordered)
	latest = tail(ordered, TrendWindow)

	end := n - len(latest)
	start := max(end-TrendWindow, 0)
	earlier = ordered[start:end]
	return latest, earlier
}

func trend(latest, earlier []Session, score func(Session) float64) float64 {
	if len(earlier) == 0 {
		return 0
	}
	return mean(latest, score) - mean(earlier, score)
}

func mean(sessions []Session, score func(Session) float64) float64 {
	if len(sessions) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sessions {
		sum += score(s)
	}
	return sum / float64(len(sessions))
}

func tail(s []Session, n int) []Session {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// streak counts consecutive calendar days, ending on the most recent session
// day, that have at least one session.
func streak(ordered []Session) int {
	days := make(map[time.Time]bool, len(ordered))
	var last time.Time
	for _, s := range ordered {
		if s.CreatedAt.IsZero() {
			continue
		}
		d := day(s.CreatedAt.Time)
		days[d] = true
		if d.After(last) {
			last = d
		}
	}

	if last.IsZero() {
		return 0
	}

	count := 0
	for d := last; days[d]; d = d.AddDate(0, 0, -1) {
		count++
	}
	return count
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
