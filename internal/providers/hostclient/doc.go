// Package hostclient is the HTTP client for a LivePen hosting server.
//
// Requests go through resty on top of a go-retryablehttp transport, so
// connection errors and 5xx responses are retried with backoff. A circuit
// breaker stops calling a server that keeps failing. Client errors (4xx)
// never trip the breaker and surface as types.ErrNotFound or
// *types.ValidationError where they map onto one.
package hostclient
