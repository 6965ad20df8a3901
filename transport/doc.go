// Package transport attaches the session held by a goSession.Store to
// outgoing HTTP requests.
//
// # Transport
//
//   - [Transport] is an http.RoundTripper that calls EnsureFresh before each
//     request and sets Authorization: Bearer <access token>.
//   - A 401 response triggers one Refresh and one retry, provided the request
//     body can be replayed (no body, or GetBody set).
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Store calls. Token lifetime,
// refresh and sign-out decisions are delegated to the Store.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Touch credential persistence.
//   - Retry more than once per request.
package transport
