package speech

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_Unmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"python isoformat", `"2025-03-01T09:30:00.123456"`, time.Date(2025, 3, 1, 9, 30, 0, 123456000, time.UTC)},
		{"no fraction", `"2025-03-01T09:30:00"`, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"rfc3339", `"2025-03-01T09:30:00Z"`, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"empty", `""`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.input), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %v want %v", ts.Time, tt.want)
		})
	}
}

func TestTimestamp_UnmarshalInvalid(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`42`), &ts))
}

func TestSession_DecodesHistoryRecord(t *testing.T) {
	body := `{
		"id": 3,
		"created_at": "2025-03-01T09:30:00.5",
		"audio_path": "uploads/x.wav",
		"transcription": "I was go home",
		"corrected_text": "I went home",
		"fluency_scores": [{"start_time": 0, "end_time": 2.5, "score": 64.2, "color": "yellow"}],
		"grammar_score": 71.5,
		"errors": [{"type": "grammar", "original": "I was go home", "corrected": "I went home"}]
	}`

	var s Session
	require.NoError(t, json.Unmarshal([]byte(body), &s))

	assert.Equal(t, 3, s.ID)
	assert.Equal(t, 2025, s.CreatedAt.Year())
	require.Len(t, s.FluencyScores, 1)
	assert.Equal(t, 2500*time.Millisecond, s.FluencyScores[0].Duration())
	assert.Equal(t, "I went home", s.Errors[0].Corrected)
}
