// Package proxy contains the request and response helpers shared by the
// relay's HTTP handlers.
//
// Inbound chat-completion bodies are read as raw JSON and checked just
// enough to forward them: a JSON object with a model and a message list,
// within the configured size limit. The payload is never decoded into a
// schema; fields needed for logging are read with gjson.
//
// Errors are rendered in the OpenAI error format. Failures coming back from
// the forwarder keep their classification: the status becomes the HTTP
// status and the category becomes the error code.
//
//	{"error":{"message":"Rate limit exceeded. ...","type":"rate_limit_exceeded","code":"rate_limited"}}
//
// Streaming responses are written one event at a time with WriteSSEEvent,
// flushing after every event. A stream that fails after the headers were
// sent ends with a single WriteSSEError line instead of "data: [DONE]".
//
// Subpackages:
//   - handlers: the HTTP handlers (chat completions, cancellation)
//   - middleware: request ID, logging, recovery, client key check, metrics
//   - types: the error body
package proxy
