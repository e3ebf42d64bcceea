/*
Package monitoring provides Prometheus metrics for the LivePen service.

It tracks HTTP requests, hosted project lifecycle, retention sweeps and
backups, share codec results, sandbox runs, console events, and WebSocket
connections. A nil *Metrics is valid and records nothing, so domain code can
run without a registry.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics, "hosting", "create")
	// ... perform operation ...
	timer.Stop("success")

Expose metrics via the standard Prometheus endpoint:

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
