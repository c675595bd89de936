package tracing

// Span attribute keys set by the forwarder. Custom keys use the "relay.*"
// namespace; error.* keys follow the generic OpenTelemetry convention.
const (
	// Request attributes
	AttrRequestID = "relay.request_id"
	AttrModel     = "relay.model"
	AttrMode      = "relay.mode"

	// Stream attributes
	AttrAttempt = "relay.attempt"
	AttrEvents  = "relay.stream.events"

	// Failure attributes
	AttrErrorCategory = "relay.error.category"
	AttrErrorStatus   = "relay.error.status"
)
