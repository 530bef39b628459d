package oauth

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/postflow/postflow-go/internal/storage"
)

// ToolInvoker is the slice of the gateway client the flow needs.
type ToolInvoker interface {
	Invoke(ctx context.Context, toolName string, arguments map[string]any) (map[string]any, error)
}

// Store is the slice of the storage layer the flow needs.
type Store interface {
	SavePendingAuthorization(record *storage.PendingAuthorization) error
	TakePendingAuthorization(stateToken string) (*storage.PendingAuthorization, error)
	SaveCredential(record *storage.Credential) error
	SaveAttempt(record *storage.AttemptRecord) error
}

// AttemptObserver receives terminal flow outcomes for metrics.
type AttemptObserver interface {
	ObserveAttempt(platformName, outcome, reason string, duration time.Duration)
}

// FlowTracer opens spans around flow stages. Implemented by the tracing
// manager.
type FlowTracer interface {
	TraceFlow(ctx context.Context, platformName, stage string) (context.Context, oteltrace.Span)
	AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue)
	SetSpanError(ctx context.Context, err error)
}

// Service drives the OAuth acquisition flow for all platforms.
type Service struct {
	gateway  ToolInvoker
	store    Store
	logger   *zap.SugaredLogger
	observer AttemptObserver
	tracer   FlowTracer
	ttl      time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates the flow service. observer may be nil.
func NewService(gw ToolInvoker, store Store, ttl time.Duration, logger *zap.SugaredLogger, observer AttemptObserver) *Service {
	return &Service{
		gateway:  gw,
		store:    store,
		logger:   logger,
		observer: observer,
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetTracer attaches a flow tracer. Flows started before this are not traced.
func (s *Service) SetTracer(tracer FlowTracer) {
	s.tracer = tracer
}

// traceFlow opens a span for one flow stage and tags it with the correlation
// ID. Without a tracer it returns the context unchanged and a no-op span.
func (s *Service) traceFlow(ctx context.Context, platformName, stage, correlationID string) (context.Context, oteltrace.Span) {
	if s.tracer == nil {
		return ctx, oteltrace.SpanFromContext(ctx)
	}
	ctx, span := s.tracer.TraceFlow(ctx, platformName, stage)
	s.tracer.AddSpanAttributes(ctx, attribute.String("correlation_id", correlationID))
	return ctx, span
}

func (s *Service) traceError(ctx context.Context, err error) {
	if s.tracer != nil {
		s.tracer.SetSpanError(ctx, err)
	}
}

// recordAttempt writes the audit row and metrics for a terminal flow state.
// Audit failures are logged, never propagated: the flow outcome stands.
func (s *Service) recordAttempt(flow *FlowContext, outcome string, reason FailureReason) {
	if s.observer != nil {
		s.observer.ObserveAttempt(flow.Platform, outcome, string(reason), flow.Duration())
	}

	err := s.store.SaveAttempt(&storage.AttemptRecord{
		CorrelationID: flow.CorrelationID,
		UserID:        flow.UserID,
		Platform:      flow.Platform,
		Outcome:       outcome,
		Reason:        string(reason),
		DurationMS:    flow.Duration().Milliseconds(),
		Timestamp:     s.now().UTC(),
	})
	if err != nil {
		s.logger.Warnw("Failed to record attempt audit row",
			"correlation_id", flow.CorrelationID, "error", err)
	}
}
