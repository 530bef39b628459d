package oauth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenResponse is the normalized view of a provider token exchange.
// Providers disagree on field naming (snake_case vs camelCase); the
// normalizer accepts either, preferring whichever key is present.
type TokenResponse struct {
	AccessToken       string
	RefreshToken      string
	ExpiresIn         int64 // seconds, 0 when the provider reported none
	ExternalAccountID string
}

// ExpiresAt converts the relative lifetime into epoch seconds, or 0 when
// the provider reported no expiry.
func (t *TokenResponse) ExpiresAt(now time.Time) int64 {
	if t.ExpiresIn <= 0 {
		return 0
	}
	return now.Unix() + t.ExpiresIn
}

// NormalizeTokenResponse maps a raw exchange result onto TokenResponse.
// This is the single normalization boundary for heterogeneous provider
// shapes; call sites never probe alternative keys themselves.
func NormalizeTokenResponse(raw map[string]any) *TokenResponse {
	resp := &TokenResponse{
		AccessToken:  pickString(raw, "access_token", "accessToken"),
		RefreshToken: pickString(raw, "refresh_token", "refreshToken"),
		ExpiresIn:    pickInt(raw, "expires_in", "expiresIn"),
		ExternalAccountID: pickString(raw,
			"external_account_id", "externalAccountId",
			"platform_user_id", "platformUserId",
			"user_id", "userId",
			"account_id", "accountId"),
	}

	// Some providers only identify the account inside an OIDC id_token.
	// The sub claim is extracted without signature verification: the token
	// arrived over the trusted gateway channel and is used for labeling,
	// not authentication.
	if resp.ExternalAccountID == "" {
		if idToken := pickString(raw, "id_token", "idToken"); idToken != "" {
			resp.ExternalAccountID = subjectFromIDToken(idToken)
		}
	}

	return resp
}

func subjectFromIDToken(idToken string) string {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

func pickString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func pickInt(raw map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch value := raw[key].(type) {
		case float64:
			return int64(value)
		case int64:
			return value
		case int:
			return int64(value)
		case string:
			if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}
