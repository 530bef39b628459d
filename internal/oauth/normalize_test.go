package oauth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTokenResponse_SnakeAndCamelAreEquivalent(t *testing.T) {
	snake := map[string]any{
		"access_token":        "T1",
		"refresh_token":       "R1",
		"expires_in":          float64(7200),
		"external_account_id": "acct-1",
	}
	camel := map[string]any{
		"accessToken":       "T1",
		"refreshToken":      "R1",
		"expiresIn":         float64(7200),
		"externalAccountId": "acct-1",
	}

	assert.Equal(t, NormalizeTokenResponse(snake), NormalizeTokenResponse(camel))

	got := NormalizeTokenResponse(snake)
	assert.Equal(t, "T1", got.AccessToken)
	assert.Equal(t, "R1", got.RefreshToken)
	assert.Equal(t, int64(7200), got.ExpiresIn)
	assert.Equal(t, "acct-1", got.ExternalAccountID)
}

func TestNormalizeTokenResponse_PrefersPresentKey(t *testing.T) {
	mixed := map[string]any{
		"accessToken": "camel-token",
		"expires_in":  "3600", // numeric string is accepted too
		"userId":      "u-9",
	}

	got := NormalizeTokenResponse(mixed)
	assert.Equal(t, "camel-token", got.AccessToken)
	assert.Equal(t, int64(3600), got.ExpiresIn)
	assert.Equal(t, "u-9", got.ExternalAccountID)
	assert.Empty(t, got.RefreshToken)
}

func TestNormalizeTokenResponse_SubjectFromIDToken(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "provider-user-7"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	got := NormalizeTokenResponse(map[string]any{
		"access_token": "T1",
		"id_token":     signed,
	})
	assert.Equal(t, "provider-user-7", got.ExternalAccountID)
}

func TestNormalizeTokenResponse_MalformedIDTokenIgnored(t *testing.T) {
	got := NormalizeTokenResponse(map[string]any{
		"access_token": "T1",
		"id_token":     "not-a-jwt",
	})
	assert.Empty(t, got.ExternalAccountID)
}

func TestTokenResponseExpiresAt(t *testing.T) {
	now := time.Unix(1_000_000, 0)

	withExpiry := &TokenResponse{ExpiresIn: 7200}
	assert.Equal(t, int64(1_007_200), withExpiry.ExpiresAt(now))

	noExpiry := &TokenResponse{}
	assert.Zero(t, noExpiry.ExpiresAt(now))
}
