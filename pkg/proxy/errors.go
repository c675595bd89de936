package proxy

import (
	"errors"

	"mercator-hq/relay/pkg/forwarder"
	"mercator-hq/relay/pkg/proxy/types"
)

// HandleError converts an error into an OpenAI-compatible error response.
// Request validation errors map to 4xx responses; everything else goes
// through the forwarder's classification, whose status and category become
// the response status and code.
//
// Example usage:
//
//	if err != nil {
//	    WriteErrorResponse(w, HandleError(err))
//	    return
//	}
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	fwdErr := forwarder.AsError(err)
	if fwdErr == nil {
		return types.NewServerError("An internal error occurred. Please try again later.")
	}
	return ClassificationResponse(fwdErr.Classification)
}

// ClassificationResponse renders a classification as an error response.
func ClassificationResponse(c forwarder.Classification) *types.ErrorResponse {
	resp := types.NewErrorResponse(c.Message, types.TypeForStatus(c.Status), "", string(c.Category))
	resp.Status = c.Status
	resp.RetryAfter = c.RetryAfter
	return resp
}
