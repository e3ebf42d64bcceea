/*
Package tracing assigns request ids and records one span per HTTP request.

The id travels in the X-Request-ID header: incoming values are reused,
missing ones are generated, and the hosting client forwards the id of the
request that triggered it. Completed spans are logged asynchronously
through zap, which doubles as the service access log.

	tracer := tracing.New("livepen", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))
*/
package tracing
