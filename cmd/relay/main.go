// Relay forwards OpenAI-compatible chat-completion requests to an upstream
// API, streaming responses back as server-sent events.
//
// It provides:
//   - Buffered and streaming forwarding with retry of transient stream failures
//   - Cancellation of in-flight requests by request ID
//   - Error classification into stable categories and HTTP statuses
//   - Prometheus metrics, OpenTelemetry tracing and structured logging
//
// Usage:
//
//	# Start the relay configured from the environment (and .env)
//	relay run
//
//	# Start with a configuration file, reloaded on change
//	relay run --config relay.yaml
//
//	# Check a configuration
//	relay validate --config relay.yaml
//
//	# Cancel an in-flight request
//	relay cancel 3f6c2a8e-... --addr http://localhost:8082
package main

import "os"

func main() {
	os.Exit(Execute())
}
