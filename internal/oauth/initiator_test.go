package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postflow/postflow-go/internal/platform"
)

func TestInitiate_UnsupportedPlatform(t *testing.T) {
	svc := newTestService(t, &fakeInvoker{}, newTestStore(t))

	_, err := svc.Initiate(context.Background(), "u1", "myspace", "")

	var unsupported *platform.ErrUnsupported
	require.ErrorAs(t, err, &unsupported)
}

func TestInitiate_PKCEPlatformCarriesChallenge(t *testing.T) {
	gw := &fakeInvoker{responses: map[string]map[string]any{
		"twitter_get_auth_url": {
			"auth_url": "https://x.test/authorize?state=s1",
			"state":    "s1",
		},
	}}
	store := newTestStore(t)
	svc := newTestService(t, gw, store)

	result, err := svc.Initiate(context.Background(), "u1", "twitter", "")
	require.NoError(t, err)
	assert.Equal(t, "s1", result.State)

	require.Len(t, gw.calls, 1)
	args := gw.calls[0].Args
	assert.Equal(t, "S256", args["code_challenge_method"])
	assert.NotEmpty(t, args["code_challenge"])

	// The locally generated verifier was persisted for the callback.
	pending, err := store.TakePendingAuthorization("s1")
	require.NoError(t, err)
	assert.NotEmpty(t, pending.CodeVerifier)
	assert.Equal(t, ChallengeS256(pending.CodeVerifier), args["code_challenge"])
}

func TestInitiate_NonPKCEPlatformOmitsChallenge(t *testing.T) {
	gw := &fakeInvoker{responses: map[string]map[string]any{
		"facebook_get_auth_url": {
			"auth_url": "https://fb.test/dialog/oauth?state=s2",
		},
	}}
	store := newTestStore(t)
	svc := newTestService(t, gw, store)

	_, err := svc.Initiate(context.Background(), "u1", "facebook", "")
	require.NoError(t, err)

	args := gw.calls[0].Args
	assert.NotContains(t, args, "code_challenge")
	assert.NotContains(t, args, "code_challenge_method")

	pending, err := store.TakePendingAuthorization("s2")
	require.NoError(t, err)
	assert.Empty(t, pending.CodeVerifier)
}

func TestInitiate_StateExtractedFromURL(t *testing.T) {
	gw := &fakeInvoker{responses: map[string]map[string]any{
		"linkedin_get_auth_url": {
			"authorization_url": "https://li.test/oauth/authorize?client_id=c&state=from-url",
		},
	}}
	svc := newTestService(t, gw, newTestStore(t))

	result, err := svc.Initiate(context.Background(), "u1", "linkedin", "")
	require.NoError(t, err)
	assert.Equal(t, "from-url", result.State)
}

func TestInitiate_ExplicitStateWins(t *testing.T) {
	gw := &fakeInvoker{responses: map[string]map[string]any{
		"linkedin_get_auth_url": {
			"auth_url": "https://li.test/oauth/authorize?state=in-url",
			"state":    "explicit",
		},
	}}
	svc := newTestService(t, gw, newTestStore(t))

	result, err := svc.Initiate(context.Background(), "u1", "linkedin", "")
	require.NoError(t, err)
	assert.Equal(t, "explicit", result.State)
}

func TestInitiate_GatewayBoundVerifierIsAuthoritative(t *testing.T) {
	gw := &fakeInvoker{responses: map[string]map[string]any{
		"twitter_get_auth_url": {
			"auth_url":      "https://x.test/authorize?state=s3",
			"code_verifier": "server-side-verifier-0123456789-0123456789-0123456789",
		},
	}}
	store := newTestStore(t)
	svc := newTestService(t, gw, store)

	_, err := svc.Initiate(context.Background(), "u1", "twitter", "")
	require.NoError(t, err)

	pending, err := store.TakePendingAuthorization("s3")
	require.NoError(t, err)
	assert.Equal(t, "server-side-verifier-0123456789-0123456789-0123456789", pending.CodeVerifier)
}

func TestInitiate_MissingAuthURL(t *testing.T) {
	gw := &fakeInvoker{responses: map[string]map[string]any{
		"twitter_get_auth_url": {"state": "s4"},
	}}
	svc := newTestService(t, gw, newTestStore(t))

	_, err := svc.Initiate(context.Background(), "u1", "twitter", "")
	assert.ErrorIs(t, err, ErrMissingAuthURL)
}

func TestInitiate_MissingState(t *testing.T) {
	gw := &fakeInvoker{responses: map[string]map[string]any{
		"twitter_get_auth_url": {"auth_url": "https://x.test/authorize"},
	}}
	svc := newTestService(t, gw, newTestStore(t))

	_, err := svc.Initiate(context.Background(), "u1", "twitter", "")
	assert.ErrorIs(t, err, ErrMissingState)
}

func TestInitiate_PersistenceFailureDoesNotAbort(t *testing.T) {
	gw := &fakeInvoker{responses: map[string]map[string]any{
		"twitter_get_auth_url": {"auth_url": "https://x.test/authorize?state=s5"},
	}}
	store := &flakyStore{BoltDB: newTestStore(t), failSavePending: true}
	svc := newTestService(t, gw, store)

	result, err := svc.Initiate(context.Background(), "u1", "twitter", "")
	require.NoError(t, err, "persistence failure degrades, does not abort")
	assert.Equal(t, "s5", result.State)
}

func TestInitiate_PendingTTL(t *testing.T) {
	gw := &fakeInvoker{responses: map[string]map[string]any{
		"twitter_get_auth_url": {"auth_url": "https://x.test/authorize?state=s6"},
	}}
	store := newTestStore(t)
	svc := newTestService(t, gw, store)

	before := time.Now()
	_, err := svc.Initiate(context.Background(), "u1", "twitter", "https://app.test/cb")
	require.NoError(t, err)

	pending, err := store.TakePendingAuthorization("s6")
	require.NoError(t, err)
	ttl := pending.ExpiresAt.Sub(pending.CreatedAt)
	assert.Equal(t, 600*time.Second, ttl)
	assert.WithinDuration(t, before.Add(600*time.Second), pending.ExpiresAt, 5*time.Second)
	assert.Equal(t, "https://app.test/cb", gw.calls[0].Args["callback_url"])
}
