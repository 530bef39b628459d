package storage

import (
	"encoding/json"
	"time"
)

// Bucket names for bbolt database
const (
	PendingAuthBucket = "pending_authorizations"
	CredentialsBucket = "credentials"
	AttemptsBucket    = "oauth_attempts"
	MetaBucket        = "meta"
)

// Meta keys
const (
	SchemaVersionKey = "schema"
)

// Current schema version
const CurrentSchemaVersion = 1

// PendingAuthorization is the anti-CSRF/anti-replay record for one OAuth
// attempt, keyed by its state token. It is single-use: the first lookup
// during callback validation consumes it.
type PendingAuthorization struct {
	StateToken   string    `json:"state_token"`
	UserID       string    `json:"user_id"`
	Platform     string    `json:"platform"`
	CodeVerifier string    `json:"code_verifier,omitempty"` // present iff the platform requires PKCE
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the record's logical lifetime has passed.
// Checked at read time, independent of physical eviction by the sweeper.
func (p *PendingAuthorization) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// MarshalBinary implements encoding.BinaryMarshaler
func (p *PendingAuthorization) MarshalBinary() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (p *PendingAuthorization) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, p)
}

// Credential is the durable token record for one (user, platform) pair.
// A reconnect fully overwrites the prior record.
type Credential struct {
	UserID         string    `json:"user_id"`
	Platform       string    `json:"platform"`
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token,omitempty"`
	ExpiresAt      int64     `json:"expires_at"` // epoch seconds, 0 if the provider reported no expiry
	PlatformUserID string    `json:"platform_user_id,omitempty"`
	Connected      bool      `json:"connected"`
	ConnectedAt    time.Time `json:"connected_at"`
}

// ExpiresIn returns the remaining token lifetime in seconds, or 0 when the
// provider reported no expiry or the token has already expired.
func (c *Credential) ExpiresIn(now time.Time) int64 {
	if c.ExpiresAt == 0 {
		return 0
	}
	remaining := c.ExpiresAt - now.Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MarshalBinary implements encoding.BinaryMarshaler
func (c *Credential) MarshalBinary() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (c *Credential) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, c)
}

// AttemptRecord is an audit row for one terminal OAuth attempt outcome.
type AttemptRecord struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	UserID        string    `json:"user_id"`
	Platform      string    `json:"platform"`
	Outcome       string    `json:"outcome"` // "success" or "error"
	Reason        string    `json:"reason,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// MarshalBinary implements encoding.BinaryMarshaler
func (a *AttemptRecord) MarshalBinary() ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (a *AttemptRecord) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, a)
}
