package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"

	"github.com/postflow/postflow-go/internal/reqcontext"
	"github.com/postflow/postflow-go/internal/storage"
)

// invocation records one gateway call made by the service under test.
type invocation struct {
	Tool string
	Args map[string]any
}

// fakeInvoker returns canned responses (or errors) per tool name.
type fakeInvoker struct {
	responses map[string]map[string]any
	errs      map[string]error
	calls     []invocation
}

func (f *fakeInvoker) Invoke(_ context.Context, toolName string, arguments map[string]any) (map[string]any, error) {
	f.calls = append(f.calls, invocation{Tool: toolName, Args: arguments})
	if err, ok := f.errs[toolName]; ok {
		return nil, err
	}
	if resp, ok := f.responses[toolName]; ok {
		return resp, nil
	}
	return nil, errors.New("no canned response for " + toolName)
}

func (f *fakeInvoker) callsTo(toolName string) int {
	count := 0
	for _, call := range f.calls {
		if call.Tool == toolName {
			count++
		}
	}
	return count
}

// flakyStore wraps the real bolt store and injects failures per operation.
type flakyStore struct {
	*storage.BoltDB
	failSavePending    bool
	failSaveCredential bool
}

func (s *flakyStore) SavePendingAuthorization(record *storage.PendingAuthorization) error {
	if s.failSavePending {
		return errors.New("disk full")
	}
	return s.BoltDB.SavePendingAuthorization(record)
}

func (s *flakyStore) SaveCredential(record *storage.Credential) error {
	if s.failSaveCredential {
		return errors.New("disk full")
	}
	return s.BoltDB.SaveCredential(record)
}

func newTestStore(t *testing.T) *storage.BoltDB {
	t.Helper()
	db, err := storage.NewBoltDB(t.TempDir(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestService(t *testing.T, gw ToolInvoker, store Store) *Service {
	t.Helper()
	return NewService(gw, store, 600*time.Second, zaptest.NewLogger(t).Sugar(), nil)
}

// recordingFlowTracer captures the spans the service opens.
type recordingFlowTracer struct {
	spans []string
	attrs []attribute.KeyValue
	errs  []string
}

func (r *recordingFlowTracer) TraceFlow(ctx context.Context, platformName, stage string) (context.Context, oteltrace.Span) {
	r.spans = append(r.spans, platformName+":"+stage)
	return ctx, oteltrace.SpanFromContext(ctx)
}

func (r *recordingFlowTracer) AddSpanAttributes(_ context.Context, attrs ...attribute.KeyValue) {
	r.attrs = append(r.attrs, attrs...)
}

func (r *recordingFlowTracer) SetSpanError(_ context.Context, err error) {
	r.errs = append(r.errs, err.Error())
}

func TestFlowTracing_SpansAroundInitiateAndCallback(t *testing.T) {
	gw := &fakeInvoker{responses: map[string]map[string]any{
		"twitter_get_auth_url": {
			"auth_url": "https://x.test/authorize?state=s1",
			"state":    "s1",
		},
	}}
	svc := newTestService(t, gw, newTestStore(t))
	tracer := &recordingFlowTracer{}
	svc.SetTracer(tracer)

	ctx := reqcontext.WithCorrelationID(context.Background(), "corr-1")
	_, err := svc.Initiate(ctx, "u1", "twitter", "")
	require.NoError(t, err)

	require.Equal(t, []string{"twitter:initiate"}, tracer.spans)
	assert.Contains(t, tracer.attrs, attribute.String("correlation_id", "corr-1"))
	assert.Empty(t, tracer.errs)

	// An unknown state fails the callback and marks its span as errored.
	result := svc.HandleCallback(ctx, "twitter", "c1", "never-issued")
	assert.Equal(t, "error", result.Status)
	require.Equal(t, []string{"twitter:initiate", "twitter:callback"}, tracer.spans)
	assert.Contains(t, tracer.errs, "invalid_state")
}

func TestFlowTracing_InitiateErrorMarksSpan(t *testing.T) {
	gw := &fakeInvoker{responses: map[string]map[string]any{
		"twitter_get_auth_url": {"state": "s1"},
	}}
	svc := newTestService(t, gw, newTestStore(t))
	tracer := &recordingFlowTracer{}
	svc.SetTracer(tracer)

	_, err := svc.Initiate(context.Background(), "u1", "twitter", "")
	require.ErrorIs(t, err, ErrMissingAuthURL)
	assert.Contains(t, tracer.errs, ErrMissingAuthURL.Error())
}
