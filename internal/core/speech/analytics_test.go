package speech

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func sessionAt(id int, day int, fluency, grammar float64) Session {
	return Session{
		ID:            id,
		CreatedAt:     Timestamp{base.AddDate(0, 0, day)},
		FluencyScores: []FluencySegment{{StartTime: 0, EndTime: 3, Score: fluency}},
		GrammarScore:  grammar,
	}
}

func TestAnalyze_Empty(t *testing.T) {
	assert.Equal(t, Analytics{}, Analyze(nil))
}

func TestAnalyze_FewerThanWindowHasZeroTrend(t *testing.T) {
	sessions := []Session{
		sessionAt(1, 0, 50, 60),
		sessionAt(2, 1, 90, 95),
		sessionAt(3, 2, 70, 40),
	}

	a := Analyze(sessions)

	assert.Equal(t, 3, a.TotalSessions)
	assert.Zero(t, a.FluencyTrend)
	assert.Zero(t, a.GrammarTrend)
	assert.Equal(t, 95.0, a.BestGrammar)
	assert.Equal(t, 90.0, a.BestFluency)
	assert.Len(t, a.Chart, 3)
}

func TestAnalyze_TrendComparesRecentWindowWithPrevious(t *testing.T) {
	var sessions []Session
	// ten sessions: first five at 40, last five at 70
	for i := 0; i < 10; i++ {
		score := 40.0
		if i >= 5 {
			score = 70
		}
		sessions = append(sessions, sessionAt(i+1, i, score, score+10))
	}

	a := Analyze(sessions)

	assert.InDelta(t, 30.0, a.FluencyTrend, 0.0001)
	assert.InDelta(t, 30.0, a.GrammarTrend, 0.0001)
}

func TestAnalyze_OrdersNewestFirstHistory(t *testing.T) {
	// /user/history returns newest first
	sessions := []Session{
		sessionAt(7, 6, 80, 80),
		sessionAt(6, 5, 80, 80),
		sessionAt(5, 4, 20, 20),
		sessionAt(4, 3, 20, 20),
		sessionAt(3, 2, 20, 20),
		sessionAt(2, 1, 20, 20),
		sessionAt(1, 0, 20, 20),
	}

	a := Analyze(sessions)

	// latest five: ids 3..7 -> mean (20*3 + 80*2)/5 = 44, previous: ids 1,2 -> 20
	assert.InDelta(t, 24.0, a.FluencyTrend, 0.0001)

	require.Len(t, a.Chart, 7)
	assert.Equal(t, 1, a.Chart[0].SessionID)
	assert.Equal(t, 7, a.Chart[6].SessionID)
}

func TestAnalyze_ChartKeepsLastTen(t *testing.T) {
	var sessions []Session
	for i := 0; i < 14; i++ {
		sessions = append(sessions, sessionAt(i+1, i, 50, 50))
	}

	a := Analyze(sessions)

	require.Len(t, a.Chart, ChartWindow)
	assert.Equal(t, 5, a.Chart[0].SessionID)
	assert.Equal(t, 14, a.Chart[9].SessionID)
}

func TestAnalyze_Streak(t *testing.T) {
	tests := []struct {
		name string
		days []int
		want int
	}{
		{"single day", []int{0}, 1},
		{"two sessions same day", []int{0, 0}, 1},
		{"three consecutive", []int{0, 1, 2}, 3},
		{"gap breaks streak", []int{0, 1, 3, 4}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sessions []Session
			for i, d := range tt.days {
				sessions = append(sessions, sessionAt(i, d, 50, 50))
			}
			assert.Equal(t, tt.want, Analyze(sessions).Streak)
		})
	}
}

func TestSession_AverageFluency(t *testing.T) {
	s := Session{FluencyScores: []FluencySegment{{Score: 40}, {Score: 80}}}
	assert.Equal(t, 60.0, s.AverageFluency())

	assert.Zero(t, Session{}.AverageFluency(), "no segments must not divide by zero")
}

func TestAnalysisResult_CorrectedAudioFile(t *testing.T) {
	r := AnalysisResult{CorrectedAudioURL: "/speech/audio/abc_corrected.mp3"}
	assert.Equal(t, "abc_corrected.mp3", r.CorrectedAudioFile())

	assert.Equal(t, "plain.mp3", AnalysisResult{CorrectedAudioURL: "plain.mp3"}.CorrectedAudioFile())
}
