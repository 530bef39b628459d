package oauth

import (
	"context"
	"errors"

	"github.com/postflow/postflow-go/internal/platform"
	"github.com/postflow/postflow-go/internal/reqcontext"
	"github.com/postflow/postflow-go/internal/storage"
)

// HandleCallback validates a provider redirect and drives the rest of the
// saga: consume the pending record, exchange the code, persist the
// credential. Every terminal state produces an audit row and a redirect
// descriptor; errors never escape as raw text.
//
// The pending record is consumed on first lookup, before the exchange, so a
// duplicate delivery of the same state deterministically fails with
// invalid_state even when the first delivery's exchange later failed.
func (s *Service) HandleCallback(ctx context.Context, platformName, code, state string) RedirectResult {
	flow := NewFlowContext(reqcontext.GetCorrelationID(ctx), platformName)
	log := s.logger.With("correlation_id", flow.CorrelationID, "platform", platformName)

	// The browser aborting the redirect must not cancel an exchange that
	// may already have durable side effects downstream.
	ctx = context.WithoutCancel(ctx)

	ctx, span := s.traceFlow(ctx, platformName, "callback", flow.CorrelationID)
	defer span.End()

	fail := func(reason FailureReason) RedirectResult {
		reached := flow.State
		flow.SetState(FlowFailed)
		s.traceError(ctx, errors.New(string(reason)))
		log.Warnw("OAuth callback failed",
			"state_reached", reached.String(), "reason", reason, "duration", flow.Duration())
		s.recordAttempt(flow, "error", reason)
		return failureResult(platformName, reason)
	}

	p, err := platform.Lookup(platformName)
	if err != nil {
		return fail(ReasonUnsupportedPlatform)
	}

	if state == "" {
		return fail(ReasonMissingState)
	}

	pending, err := s.store.TakePendingAuthorization(state)
	switch {
	case errors.Is(err, storage.ErrPendingNotFound), errors.Is(err, storage.ErrPendingExpired):
		return fail(ReasonInvalidState)
	case err != nil:
		return fail(ReasonStorageError)
	}
	if pending.Platform != p.Name {
		// State tokens are bound to the platform that issued them.
		return fail(ReasonInvalidState)
	}
	flow.SetState(FlowStateValidated)
	flow.UserID = pending.UserID
	log = log.With("user_id", pending.UserID)

	if p.RequiresPKCE && pending.CodeVerifier == "" {
		// Never fall back to an insecure exchange.
		return fail(ReasonMissingCodeVerifier)
	}

	args := map[string]any{
		"code":    code,
		"user_id": pending.UserID,
	}
	if pending.CodeVerifier != "" {
		args["code_verifier"] = pending.CodeVerifier
	}

	exchangeCtx := reqcontext.WithCorrelationID(ctx, flow.CorrelationID)
	raw, err := s.gateway.Invoke(exchangeCtx, p.ExchangeTool, args)
	if err != nil {
		// The pending record is already consumed; the user must restart
		// with a fresh initiate.
		log.Warnw("Token exchange failed", "error", err)
		return fail(ReasonExchangeFailed)
	}

	tokens := NormalizeTokenResponse(raw)
	if tokens.AccessToken == "" {
		log.Warnw("Exchange response carried no access token")
		return fail(ReasonExchangeFailed)
	}
	flow.SetState(FlowTokenExchanged)

	now := s.now()
	credential := &storage.Credential{
		UserID:         pending.UserID,
		Platform:       p.Name,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		ExpiresAt:      tokens.ExpiresAt(now),
		PlatformUserID: tokens.ExternalAccountID,
		Connected:      true,
		ConnectedAt:    now.UTC(),
	}
	if err := s.store.SaveCredential(credential); err != nil {
		// Terminal even though a valid token was obtained: a token
		// without a durable record is as good as lost.
		log.Errorw("Failed to persist credential", "error", err)
		return fail(ReasonStorageError)
	}
	flow.SetState(FlowCredentialPersisted)

	flow.SetState(FlowDone)
	log.Infow("OAuth flow completed",
		"external_account_id", tokens.ExternalAccountID, "duration", flow.Duration())
	s.recordAttempt(flow, "success", "")
	return successResult(p.Name)
}
