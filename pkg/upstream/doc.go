// Package upstream is the HTTP client for the backing chat-completion API.
//
// The client owns a bounded connection pool and enforces four independent
// timeout phases:
//
//   - connect: dialing and the TLS handshake
//   - read: waiting for response headers and every read of the body
//   - write: every write of the request to the connection
//   - pool: waiting for a free slot in the connection pool
//
// Failures are returned as typed errors (TimeoutError, ConnectionError,
// PoolTimeoutError, AuthError, RateLimitError, BadRequestError, APIError,
// ParseError) so callers can classify them without inspecting messages.
//
// Basic usage:
//
//	client, err := upstream.New(upstream.Config{
//	    BaseURL: "https://api.openai.com/v1",
//	    APIKey:  os.Getenv("OPENAI_API_KEY"),
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	body, err := client.Complete(ctx, payload)
//
// Streaming responses are consumed with a StreamReader:
//
//	stream, err := client.Stream(ctx, payload)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for {
//	    unit, err := stream.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package upstream
