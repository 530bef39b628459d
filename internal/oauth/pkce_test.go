package oauth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeVerifier(t *testing.T) {
	verifier, err := GenerateCodeVerifier()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(verifier), 43, "RFC 7636 minimum length")
	assert.LessOrEqual(t, len(verifier), 128, "RFC 7636 maximum length")
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9_-]+$`), verifier, "base64url alphabet only")

	second, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.NotEqual(t, verifier, second)
}

func TestChallengeS256_RFCVector(t *testing.T) {
	// Appendix B of RFC 7636.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", ChallengeS256(verifier))
}
