package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hay-kot/parley/internal/core/speech"
)

func TestResult(t *testing.T) {
	md := Result(speech.AnalysisResult{
		SessionID:     "s-1",
		Transcription: "I goes home",
		CorrectedText: "I go home",
		GrammarScore:  72.5,
		FluencyScores: []speech.FluencySegment{
			{StartTime: 0, EndTime: 1.5, Score: 80},
			{StartTime: 1.5, EndTime: 3, Score: 60},
		},
		Errors:            []speech.GrammarError{{Type: "verb", Original: "goes", Corrected: "go"}},
		CorrectedAudioURL: "/speech/audio/s-1.mp3",
	})

	assert.Contains(t, md, "Session `s-1`")
	assert.Contains(t, md, "| 72.5 | 70.0 |")
	assert.Contains(t, md, "> I goes home")
	assert.Contains(t, md, "> I go home")
	assert.Contains(t, md, "**verb**: ~~goes~~ → go")
	assert.Contains(t, md, "`s-1.mp3`")
}

func TestResult_SkipsUnchangedCorrection(t *testing.T) {
	md := Result(speech.AnalysisResult{Transcription: "fine", CorrectedText: "fine"})

	assert.NotContains(t, md, "## Corrected")
	assert.NotContains(t, md, "## Corrections")
}

func TestHistory(t *testing.T) {
	created := speech.Timestamp{Time: time.Date(2025, 3, 1, 9, 30, 0, 0, time.Local)}

	md := History([]speech.Session{
		{ID: 7, GrammarScore: 90, Transcription: "a | b", CreatedAt: created},
	})

	assert.Contains(t, md, "| 7 | 2025-03-01 09:30 | 90.0 | 0.0 | a \\| b |")
	assert.Contains(t, History(nil), "No sessions")
}

func TestAnalytics(t *testing.T) {
	md := Analytics(speech.Analytics{
		TotalSessions: 3,
		Streak:        1,
		BestGrammar:   90,
		GrammarTrend:  4.3,
		FluencyTrend:  -2,
		Chart:         []speech.ChartPoint{{SessionID: 1, Grammar: 50, Fluency: 100}},
	})

	assert.Contains(t, md, "| 3 | 1 day | 90.0 | 0.0 | +4.3 | -2.0 |")
	assert.Contains(t, md, strings.Repeat("█", 10)+strings.Repeat("░", 10))
	assert.Contains(t, md, strings.Repeat("█", 20))
}

func TestBar_Clamps(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", barWidth), bar(-5))
	assert.Equal(t, strings.Repeat("█", barWidth), bar(140))
}

func TestCell_Truncates(t *testing.T) {
	assert.Equal(t, "abcd…", cell("abcdefgh", 5))
	assert.Equal(t, "abc", cell("abc", 5))
}
