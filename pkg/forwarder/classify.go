package forwarder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"mercator-hq/relay/pkg/upstream"
)

// Category is a stable failure category.
type Category string

const (
	CategoryAuthentication      Category = "authentication"
	CategoryRateLimited         Category = "rate_limited"
	CategoryMalformedRequest    Category = "malformed_request"
	CategoryUpstreamTimeout     Category = "upstream_timeout"
	CategoryUpstreamConnection  Category = "upstream_connection"
	CategoryUpstreamServerError Category = "upstream_server_error"
	CategoryUpstreamGeneric     Category = "upstream_generic"
	CategoryPoolExhausted       Category = "pool_exhausted"
	CategoryUnexpected          Category = "unexpected"
	CategoryCancelled           Category = "cancelled"
)

// StatusClientClosedRequest is the status reported for cancelled requests.
const StatusClientClosedRequest = 499

// Guidance messages.
const (
	MsgRegion         = "OpenAI API is not available in your region. Consider using a VPN or Azure OpenAI service."
	MsgInvalidKey     = "Invalid API key. Please check your OPENAI_API_KEY configuration."
	MsgRateLimit      = "Rate limit exceeded. Please wait and try again, or upgrade your API plan."
	MsgModelNotFound  = "Model not found. Please check the model name in your request."
	MsgBilling        = "Billing issue. Please check your OpenAI account billing status."
	MsgConnectTimeout = "Connection timeout - unable to reach upstream service"
	MsgReadTimeout    = "Read timeout - upstream service took too long to respond"
	MsgWriteTimeout   = "Write timeout - unable to send request to upstream service"
	MsgConnection     = "Connection error - unable to connect to upstream service"
	MsgPoolExhausted  = "Service temporarily unavailable - connection pool exhausted. Please retry."
	MsgCancelled      = "Request cancelled by client"
)

var retryHints = []string{
	"timeout",
	"timed out",
	"connection",
	"network",
	"temporarily unavailable",
	"try again",
}

// Classification is the outcome of classifying a failure.
type Classification struct {
	Category  Category
	Status    int
	Message   string
	Retryable bool

	// RetryAfter is the back-off the upstream asked for, when it sent one.
	RetryAfter time.Duration
}

// Classify maps a failure to its classification. Typed upstream errors are
// matched first, then context and network errors, then the message text.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Category: CategoryUnexpected, Status: http.StatusInternalServerError, Message: "unknown error"}
	}

	var fwdErr *Error
	if errors.As(err, &fwdErr) {
		return fwdErr.Classification
	}

	var (
		authErr    *upstream.AuthError
		rateErr    *upstream.RateLimitError
		badErr     *upstream.BadRequestError
		poolErr    *upstream.PoolTimeoutError
		timeoutErr *upstream.TimeoutError
		connErr    *upstream.ConnectionError
		apiErr     *upstream.APIError
	)

	switch {
	case errors.Is(err, ErrRequestCancelled), errors.Is(err, context.Canceled):
		return cancelled()

	case errors.As(err, &authErr):
		return Classification{
			Category: CategoryAuthentication,
			Status:   http.StatusUnauthorized,
			Message:  Guidance(authErr.Message),
		}

	case errors.As(err, &rateErr):
		c := rateLimited(rateErr.Message)
		c.RetryAfter = rateErr.RetryAfter
		return c

	case errors.As(err, &badErr):
		return Classification{
			Category: CategoryMalformedRequest,
			Status:   http.StatusBadRequest,
			Message:  Guidance(badErr.Message),
		}

	case errors.As(err, &poolErr):
		return Classification{
			Category: CategoryPoolExhausted,
			Status:   http.StatusServiceUnavailable,
			Message:  MsgPoolExhausted,
		}

	case errors.As(err, &timeoutErr):
		return timeout(timeoutErr.Phase, timeoutErr.Error())

	case errors.As(err, &connErr):
		return connection()

	case errors.As(err, &apiErr):
		return classifyAPIError(apiErr)

	case errors.Is(err, context.DeadlineExceeded):
		return timeout(upstream.PhaseRequest, err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return timeout(upstream.PhaseRequest, err.Error())
		}
		return connection()
	}

	return classifyMessage(err.Error())
}

func classifyAPIError(e *upstream.APIError) Classification {
	status := e.StatusCode
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Classification{Category: CategoryAuthentication, Status: status, Message: Guidance(e.Message)}
	case status == http.StatusBadRequest:
		return Classification{Category: CategoryMalformedRequest, Status: status, Message: Guidance(e.Message)}
	case status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return Classification{
			Category:  CategoryUpstreamServerError,
			Status:    status,
			Message:   Guidance(e.Message),
			Retryable: true,
		}
	}

	if strings.Contains(strings.ToLower(e.Type+" "+e.Message), "rate_limit") {
		return rateLimited(e.Message)
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Classification{
		Category:  CategoryUpstreamGeneric,
		Status:    status,
		Message:   Guidance(e.Message),
		Retryable: hasRetryHint(e.Message),
	}
}

// classifyMessage is the fallback for errors with no recognizable type.
func classifyMessage(msg string) Classification {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "rate_limit"):
		return rateLimited(msg)
	case strings.Contains(lower, "timed out"), strings.Contains(lower, "timeout"):
		return timeout(upstream.PhaseRequest, msg)
	case strings.Contains(lower, "connection"), strings.Contains(lower, "network"):
		return connection()
	}
	return Classification{
		Category:  CategoryUnexpected,
		Status:    http.StatusInternalServerError,
		Message:   Guidance(msg),
		Retryable: hasRetryHint(msg),
	}
}

func cancelled() Classification {
	return Classification{
		Category: CategoryCancelled,
		Status:   StatusClientClosedRequest,
		Message:  MsgCancelled,
	}
}

func rateLimited(msg string) Classification {
	return Classification{
		Category: CategoryRateLimited,
		Status:   http.StatusTooManyRequests,
		Message:  Guidance(msg),
	}
}

func connection() Classification {
	return Classification{
		Category:  CategoryUpstreamConnection,
		Status:    http.StatusGatewayTimeout,
		Message:   MsgConnection,
		Retryable: true,
	}
}

func timeout(phase upstream.Phase, detail string) Classification {
	var msg string
	switch phase {
	case upstream.PhaseConnect:
		msg = MsgConnectTimeout
	case upstream.PhaseRead:
		msg = MsgReadTimeout
	case upstream.PhaseWrite:
		msg = MsgWriteTimeout
	default:
		msg = "Timeout error: " + detail
	}
	return Classification{
		Category:  CategoryUpstreamTimeout,
		Status:    http.StatusGatewayTimeout,
		Message:   msg,
		Retryable: true,
	}
}

// exhausted is reported when a retryable failure outlives the retry budget.
func exhausted(retries int, last Classification) Classification {
	return Classification{
		Category: CategoryUpstreamTimeout,
		Status:   http.StatusGatewayTimeout,
		Message:  fmt.Sprintf("Upstream unavailable after %d retries: %s", retries, last.Message),
	}
}

func hasRetryHint(msg string) bool {
	lower := strings.ToLower(msg)
	for _, hint := range retryHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// Guidance renders an actionable message for well-known upstream failures
// and returns msg unchanged otherwise.
func Guidance(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unsupported_country_region_territory"),
		strings.Contains(lower, "country, region, or territory not supported"):
		return MsgRegion
	case strings.Contains(lower, "invalid_api_key"), strings.Contains(lower, "unauthorized"):
		return MsgInvalidKey
	case strings.Contains(lower, "rate_limit"), strings.Contains(lower, "quota"):
		return MsgRateLimit
	case strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return MsgModelNotFound
	case strings.Contains(lower, "billing"), strings.Contains(lower, "payment"):
		return MsgBilling
	}
	return msg
}
