package auth

import (
	"context"
	"time"
)

// Record is the persisted form of the credential. Subject and ExpiresAt are
// copied from the claims when the token is saved so tools can show them
// without decoding; the gate always decodes the token itself.
type Record struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	SavedAt   time.Time `json:"saved_at"`
}

// Storage persists at most one credential.
type Storage interface {
	// Load returns the stored record, or ErrNoCredential when there is none.
	Load(ctx context.Context) (Record, error)
	// Store replaces the stored record.
	Store(ctx context.Context, rec Record) error
	// Remove deletes the record. Removing an absent record is not an error.
	Remove(ctx context.Context) error
}

// NewRecord builds the record for token. Claims that fail to decode are left
// empty; validity is decided at evaluation time.
func NewRecord(token string, now time.Time) Record {
	rec := Record{Token: token, SavedAt: now}
	if claims, err := Decode(token); err == nil {
		rec.Subject = claims.Subject
		rec.ExpiresAt = claims.ExpiresAt
	}
	return rec
}
