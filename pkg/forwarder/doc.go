// Package forwarder forwards chat-completion requests to an upstream API.
//
// A Forwarder offers two paths:
//
//   - Forward performs a buffered completion. The upstream call races
//     against the request's cancellation signal and is never retried.
//   - ForwardStream returns a Stream, a pull iterator over framed SSE
//     events. Transient failures are retried with exponential backoff,
//     reopening the upstream stream from scratch.
//
// Requests carrying an ID are tracked in a Registry for the duration of the
// call, so Cancel can stop them cooperatively from another goroutine.
// Every failure leaving the package is an *Error carrying a
// Classification: a stable category, an HTTP-style status and a guidance
// message.
//
// Streaming usage:
//
//	stream, err := fwd.ForwardStream(ctx, forwarder.Request{Payload: body, ID: id})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for {
//	    out := stream.Next(ctx)
//	    switch out.Kind {
//	    case forwarder.OutcomeEvent, forwarder.OutcomeDone:
//	        write(out.Event)
//	    }
//	    if out.Terminal() {
//	        break
//	    }
//	}
//
// Units already delivered before a retried failure are not retracted; a
// consumer may see a repeated prefix after a retry.
package forwarder
