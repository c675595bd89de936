// Package handlers provides the relay's HTTP handlers.
//
//   - ChatHandler: POST /v1/chat/completions. Buffered requests are
//     answered with the upstream body unchanged; streamed requests with
//     the forwarder's framed SSE events.
//   - CancelHandler: POST /v1/requests/{id}/cancel. Signals the in-flight
//     request with that X-Request-ID and answers {"id":..., "cancelled":bool}.
//
// # Streaming Format
//
//	data: {"id":"chatcmpl-123","object":"chat.completion.chunk","choices":[...]}
//	data: {"id":"chatcmpl-123","object":"chat.completion.chunk","choices":[],"usage":{...}}
//	data: [DONE]
//
// A stream that fails after output was sent ends with one error line and no
// terminator:
//
//	data: {"error":{"message":"...","type":"gateway_timeout","code":"upstream_timeout"}}
//
// A cancelled stream simply stops. Units already delivered before a retried
// upstream failure are not retracted, so a client can see a repeated prefix
// after a retry.
package handlers
