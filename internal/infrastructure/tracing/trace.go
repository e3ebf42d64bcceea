package tracing

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/shared/id"
)

// HeaderRequestID carries the request id across hops.
const HeaderRequestID = "X-Request-ID"

// Span represents one traced operation
type Span struct {
	RequestID  string
	Name       string
	Service    string
	StartTime  time.Time
	Duration   time.Duration
	Tags       map[string]string
	Error      error
	StatusCode int
}

// Tracer collects finished spans and logs them
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
	done    chan struct{}
	once    sync.Once
}

// New creates a new tracer instance
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, 1000),
		done:    make(chan struct{}),
	}

	go t.collectSpans()

	return t
}

// StartSpan creates a span, reusing the request id already in ctx.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	reqID := RequestID(ctx)
	if reqID == "" {
		reqID = id.NewRequestID().String()
	}

	span := &Span{
		RequestID: reqID,
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	return span, WithRequestID(ctx, reqID)
}

// Finish marks the span as complete
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	s.Error = err
}

// SetStatus sets the HTTP status code
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

func (t *Tracer) collectSpans() {
	defer close(t.done)
	for span := range t.spans {
		t.processSpan(span)
	}
}

func (t *Tracer) processSpan(span *Span) {
	fields := []zap.Field{
		zap.String("request_id", span.RequestID),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.Int("status", span.StatusCode),
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	switch {
	case span.Error != nil:
		fields = append(fields, zap.Error(span.Error))
		t.logger.Error("request failed", fields...)
	case span.StatusCode >= http.StatusInternalServerError:
		t.logger.Error("request completed", fields...)
	case span.StatusCode >= http.StatusBadRequest:
		t.logger.Warn("request completed", fields...)
	default:
		t.logger.Info("request completed", fields...)
	}
}

// Submit sends a span to the collector, dropping it when the buffer is full
func (t *Tracer) Submit(span *Span) {
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span", zap.String("request_id", span.RequestID))
	}
}

// Close drains pending spans and stops the collector.
func (t *Tracer) Close() {
	t.once.Do(func() {
		close(t.spans)
		<-t.done
	})
}

type contextKey struct{}

// WithRequestID stores a request id in ctx
func WithRequestID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, contextKey{}, reqID)
}

// RequestID retrieves the request id from ctx
func RequestID(ctx context.Context) string {
	reqID, _ := ctx.Value(contextKey{}).(string)
	return reqID
}

// InjectHeader copies the request id in ctx onto h.
func InjectHeader(ctx context.Context, h http.Header) {
	if reqID := RequestID(ctx); reqID != "" {
		h.Set(HeaderRequestID, reqID)
	}
}
