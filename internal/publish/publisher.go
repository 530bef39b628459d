// Package publish exposes the operations available once a platform is
// connected: checking connection status, publishing content, and
// disconnecting.
package publish

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/postflow/postflow-go/internal/platform"
	"github.com/postflow/postflow-go/internal/reqcontext"
	"github.com/postflow/postflow-go/internal/storage"
)

// ErrNotConnected indicates no usable credential exists for (user, platform).
var ErrNotConnected = errors.New("platform not connected")

// ToolInvoker is the slice of the gateway client the publisher needs.
type ToolInvoker interface {
	Invoke(ctx context.Context, toolName string, arguments map[string]any) (map[string]any, error)
}

// Store is the slice of the storage layer the publisher needs.
type Store interface {
	GetCredential(userID, platformName string) (*storage.Credential, error)
	DeleteCredential(userID, platformName string) error
}

// ConnectionStatus is the per-platform status view.
type ConnectionStatus struct {
	Connected      bool       `json:"connected"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
	PlatformUserID string     `json:"platform_user_id,omitempty"`
	ExpiresIn      int64      `json:"expires_in,omitempty"`
}

// Publisher resolves stored credentials and invokes platform tools.
type Publisher struct {
	gateway ToolInvoker
	store   Store
	logger  *zap.SugaredLogger
}

// NewPublisher creates a publisher.
func NewPublisher(gw ToolInvoker, store Store, logger *zap.SugaredLogger) *Publisher {
	return &Publisher{gateway: gw, store: store, logger: logger}
}

// Status reports whether the user has the platform connected. A storage
// read failure degrades to "not connected" rather than erroring: status is
// advisory and must stay available.
func (p *Publisher) Status(ctx context.Context, userID, platformName string) (*ConnectionStatus, error) {
	if _, err := platform.Lookup(platformName); err != nil {
		return nil, err
	}

	credential, err := p.store.GetCredential(userID, platformName)
	switch {
	case errors.Is(err, storage.ErrCredentialNotFound):
		return &ConnectionStatus{Connected: false}, nil
	case err != nil:
		p.logger.Warnw("Credential read failed, reporting not connected",
			"correlation_id", reqcontext.GetCorrelationID(ctx),
			"user_id", userID, "platform", platformName, "error", err)
		return &ConnectionStatus{Connected: false}, nil
	}

	if !credential.Connected {
		return &ConnectionStatus{Connected: false}, nil
	}

	connectedAt := credential.ConnectedAt
	return &ConnectionStatus{
		Connected:      true,
		ConnectedAt:    &connectedAt,
		PlatformUserID: credential.PlatformUserID,
		ExpiresIn:      credential.ExpiresIn(time.Now()),
	}, nil
}

// Post publishes content through the platform using the stored access
// token. The token never leaves the server: the client only supplies the
// content.
func (p *Publisher) Post(ctx context.Context, userID, platformName, content string) (map[string]any, error) {
	target, err := platform.Lookup(platformName)
	if err != nil {
		return nil, err
	}

	credential, err := p.store.GetCredential(userID, platformName)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) {
			return nil, ErrNotConnected
		}
		return nil, err
	}
	if !credential.Connected || credential.AccessToken == "" {
		return nil, ErrNotConnected
	}

	result, err := p.gateway.Invoke(ctx, target.PostTool, map[string]any{
		"user_id":      userID,
		"content":      content,
		"access_token": credential.AccessToken,
	})
	if err != nil {
		return nil, err
	}

	p.logger.Infow("Published content",
		"correlation_id", reqcontext.GetCorrelationID(ctx),
		"user_id", userID, "platform", target.Name)
	return result, nil
}

// Disconnect removes the credential; the storage layer cascades to any
// pending-authorization rows for the same pair.
func (p *Publisher) Disconnect(ctx context.Context, userID, platformName string) error {
	target, err := platform.Lookup(platformName)
	if err != nil {
		return err
	}

	if err := p.store.DeleteCredential(userID, target.Name); err != nil {
		return err
	}

	p.logger.Infow("Platform disconnected",
		"correlation_id", reqcontext.GetCorrelationID(ctx),
		"user_id", userID, "platform", target.Name)
	return nil
}
