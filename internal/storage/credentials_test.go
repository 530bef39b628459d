package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func credentialFixture() *Credential {
	return &Credential{
		UserID:         "u1",
		Platform:       "linkedin",
		AccessToken:    "T1",
		RefreshToken:   "R1",
		ExpiresAt:      time.Now().Add(2 * time.Hour).Unix(),
		PlatformUserID: "acct-9",
		Connected:      true,
		ConnectedAt:    time.Now().UTC(),
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SaveCredential(credentialFixture()))

	got, err := db.GetCredential("u1", "linkedin")
	require.NoError(t, err)
	assert.Equal(t, "T1", got.AccessToken)
	assert.Equal(t, "acct-9", got.PlatformUserID)
	assert.True(t, got.Connected)
	assert.Greater(t, got.ExpiresIn(time.Now()), int64(0))
}

func TestGetCredential_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetCredential("u1", "twitter")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestSaveCredential_ReconnectOverwrites(t *testing.T) {
	db := newTestDB(t)
	first := credentialFixture()
	require.NoError(t, db.SaveCredential(first))

	second := &Credential{
		UserID:      "u1",
		Platform:    "linkedin",
		AccessToken: "T2",
		Connected:   true,
		ConnectedAt: time.Now().UTC(),
	}
	require.NoError(t, db.SaveCredential(second))

	got, err := db.GetCredential("u1", "linkedin")
	require.NoError(t, err)
	assert.Equal(t, "T2", got.AccessToken)
	// No merge of stale fields from the first connect.
	assert.Empty(t, got.RefreshToken)
	assert.Empty(t, got.PlatformUserID)
	assert.Zero(t, got.ExpiresAt)
}

func TestSaveCredential_ConnectedRequiresToken(t *testing.T) {
	db := newTestDB(t)
	err := db.SaveCredential(&Credential{
		UserID:    "u1",
		Platform:  "twitter",
		Connected: true,
	})
	assert.Error(t, err)
}

func TestDeleteCredential_CascadesPending(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SaveCredential(credentialFixture()))

	orphan := pendingFixture("orphan")
	orphan.Platform = "linkedin"
	require.NoError(t, db.SavePendingAuthorization(orphan))

	require.NoError(t, db.DeleteCredential("u1", "linkedin"))

	_, err := db.GetCredential("u1", "linkedin")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
	_, err = db.TakePendingAuthorization("orphan")
	assert.ErrorIs(t, err, ErrPendingNotFound, "disconnect removes orphaned pending rows")
}

func TestDeleteCredential_Idempotent(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.DeleteCredential("u1", "facebook"))
}

func TestCredentialExpiresIn(t *testing.T) {
	now := time.Now()

	noExpiry := &Credential{}
	assert.Zero(t, noExpiry.ExpiresIn(now))

	past := &Credential{ExpiresAt: now.Add(-time.Hour).Unix()}
	assert.Zero(t, past.ExpiresIn(now))

	future := &Credential{ExpiresAt: now.Add(time.Hour).Unix()}
	assert.InDelta(t, 3600, future.ExpiresIn(now), 2)
}
