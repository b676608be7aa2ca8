package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"research-chat/internal/mocks"
	"research-chat/internal/telemetry"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.chat", "research-chat", "test", zap.NewNop())

	traceID := trace.TraceID{0x0a, 0x0b}
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  trace.SpanID{0x01},
	}))

	publisher.On("Publish", ctx, "audit.chat", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.EventType == "audit_log" &&
			env.Service == "research-chat" &&
			env.RequestID == "req-1" &&
			env.UserID == "alice" &&
			env.Payload == telemetry.AuditPayload{Level: "INFO", Text: "group created", Resource: "group:g1"}
	}), map[string]string{"x-request-id": "req-1", "trace_id": traceID.String()}).Return(nil).Once()

	emitter.Emit(ctx, "INFO", "group created", "group:g1", "req-1", "alice")

	publisher.AssertExpectations(t)
}

func TestAuditEmitterSwallowsPublishErrors(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.chat", mock.Anything, map[string]string{}).Return(errors.New("channel closed")).Once()
	emitter := telemetry.NewAuditEmitter(publisher, "audit.chat", "research-chat", "test", zap.NewNop())

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "member left", "group:g1", "", "bob")
	})
	publisher.AssertExpectations(t)
}

func TestNilAuditEmitterIsNoop(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "file shared", "", "", "")
	})
}
