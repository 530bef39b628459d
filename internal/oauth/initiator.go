package oauth

import (
	"context"
	"fmt"
	"net/url"

	"github.com/postflow/postflow-go/internal/platform"
	"github.com/postflow/postflow-go/internal/reqcontext"
	"github.com/postflow/postflow-go/internal/storage"
)

// InitiationResult carries what the client needs to start the provider leg.
type InitiationResult struct {
	AuthorizationURL string `json:"auth_url"`
	State            string `json:"state"`
}

// Initiate builds an authorization request for the platform and persists the
// pending-authorization record that the later callback will validate against.
//
// The gateway response is authoritative for the state token (explicit field,
// else extracted from the returned URL) and, on PKCE platforms, for the
// verifier it bound server-side; the locally generated verifier is only a
// fallback mirror.
func (s *Service) Initiate(ctx context.Context, userID, platformName, callbackURL string) (_ *InitiationResult, retErr error) {
	p, err := platform.Lookup(platformName)
	if err != nil {
		return nil, err
	}

	correlationID := reqcontext.GetCorrelationID(ctx)
	log := s.logger.With("correlation_id", correlationID, "platform", p.Name, "user_id", userID)

	ctx, span := s.traceFlow(ctx, p.Name, "initiate", correlationID)
	defer func() {
		if retErr != nil {
			s.traceError(ctx, retErr)
		}
		span.End()
	}()

	args := map[string]any{
		"user_id": userID,
		"scopes":  p.Scopes,
	}
	if callbackURL != "" {
		args["callback_url"] = callbackURL
	}

	localVerifier := ""
	if p.RequiresPKCE {
		localVerifier, err = GenerateCodeVerifier()
		if err != nil {
			return nil, err
		}
		args["code_challenge"] = ChallengeS256(localVerifier)
		args["code_challenge_method"] = "S256"
	}

	result, err := s.gateway.Invoke(ctx, p.AuthURLTool, args)
	if err != nil {
		return nil, err
	}

	authURL := pickString(result, "auth_url", "authorization_url", "authorizationUrl")
	if authURL == "" {
		return nil, ErrMissingAuthURL
	}

	state := pickString(result, "state")
	if state == "" {
		state = stateFromAuthURL(authURL)
	}
	if state == "" {
		return nil, ErrMissingState
	}

	verifier := localVerifier
	if bound := pickString(result, "code_verifier", "codeVerifier"); bound != "" {
		verifier = bound
	}
	if p.RequiresPKCE && verifier == "" {
		return nil, fmt.Errorf("no code verifier available for PKCE platform %s", p.Name)
	}

	now := s.now()
	pending := &storage.PendingAuthorization{
		StateToken:   state,
		UserID:       userID,
		Platform:     p.Name,
		CodeVerifier: verifier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.store.SavePendingAuthorization(pending); err != nil {
		// Best-effort degrade: the client still gets its URL, and the
		// callback will later fail with invalid_state.
		log.Errorw("Failed to persist pending authorization; callback will be rejected",
			"state", state, "error", err)
	} else {
		log.Infow("Authorization initiated", "state", state, "expires_at", pending.ExpiresAt)
	}

	return &InitiationResult{AuthorizationURL: authURL, State: state}, nil
}

// stateFromAuthURL pulls the state query parameter out of an authorization
// URL when the gateway did not return it as an explicit field.
func stateFromAuthURL(authURL string) string {
	parsed, err := url.Parse(authURL)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("state")
}
