package http

import (
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
)

// HandlerMetrics wraps handlers with metrics tracking
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// TrackHostingOperation tracks hosted project operations. Call the returned
// func with the operation's error.
func (hm *HandlerMetrics) TrackHostingOperation(operation string) func(error) {
	return monitoring.NewTimer(hm.metrics, "hosting", operation).StopErr
}

// TrackPlaygroundOperation tracks compose, run, share and archive operations
func (hm *HandlerMetrics) TrackPlaygroundOperation(operation string) func(error) {
	return monitoring.NewTimer(hm.metrics, "playground", operation).StopErr
}

// TrackAdminOperation tracks admin operations
func (hm *HandlerMetrics) TrackAdminOperation(operation string) func(error) {
	return monitoring.NewTimer(hm.metrics, "admin", operation).StopErr
}
