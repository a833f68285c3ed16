// Package speech defines the speech-coaching domain types exchanged with the
// backend and the analytics derived from them on the client.
package speech

import "time"

// User is the authenticated account.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt Timestamp `json:"created_at"`
}

// AuthTokens is returned by a successful login.
type AuthTokens struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// FluencySegment is a time-bounded sub-score within one recording.
type FluencySegment struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Score     float64 `json:"score"`
	Color     string  `json:"color"`
}

// Duration returns the length of the segment.
func (f FluencySegment) Duration() time.Duration {
	return time.Duration((f.EndTime - f.StartTime) * float64(time.Second))
}

// GrammarError is a single correction suggested by the backend.
type GrammarError struct {
	Type      string `json:"type"`
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

// Dashboard is the aggregate summary served by /user/dashboard.
type Dashboard struct {
	AverageFluency float64        `json:"average_fluency"`
	AverageGrammar float64        `json:"average_grammar"`
	SessionCount   int            `json:"session_count"`
	RecentErrors   []GrammarError `json:"recent_errors"`
}

// Session is one persisted practice session as listed by /user/history.
type Session struct {
	ID            int              `json:"id"`
	AudioPath     string           `json:"audio_path"`
	Transcription string           `json:"transcription"`
	CorrectedText string           `json:"corrected_text"`
	FluencyScores []FluencySegment `json:"fluency_scores"`
	GrammarScore  float64          `json:"grammar_score"`
	Errors        []GrammarError   `json:"errors"`
	CreatedAt     Timestamp        `json:"created_at"`
}

// AverageFluency returns the mean score across the session's segments, or 0
// when the backend reported none.
func (s Session) AverageFluency() float64 {
	if len(s.FluencyScores) == 0 {
		return 0
	}

	var sum float64
	for _, seg := range s.FluencyScores {
		sum += seg.Score
	}
	return sum / float64(len(s.FluencyScores))
}

// AnalysisResult is the scoring bundle returned for one recorded utterance by
// /speech/stop and streamed incrementally over the live channel.
type AnalysisResult struct {
	SessionID         string           `json:"session_id,omitempty"`
	Transcription     string           `json:"transcription"`
	CorrectedText     string           `json:"corrected_text"`
	FluencyScores     []FluencySegment `json:"fluency_scores"`
	GrammarScore      float64          `json:"grammar_score"`
	Errors            []GrammarError   `json:"errors"`
	CorrectedAudioURL string           `json:"corrected_audio_url"`
}

// AverageFluency returns the mean segment score.
func (r AnalysisResult) AverageFluency() float64 {
	return Session{FluencyScores: r.FluencyScores}.AverageFluency()
}

// CorrectedAudioFile returns the filename part of CorrectedAudioURL, suitable
// for /speech/audio/{filename}.
func (r AnalysisResult) CorrectedAudioFile() string {
	u := r.CorrectedAudioURL
	for i := len(u) - 1; i >= 0; i-- {
		if u[i] == '/' {
			return u[i+1:]
		}
	}
	return u
}
