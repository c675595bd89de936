package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/proxy/handlers"
	"mercator-hq/relay/pkg/proxy/types"

	"github.com/spf13/cobra"
)

var cancelFlags struct {
	addr    string
	apiKey  string
	timeout time.Duration
}

type cancelResult handlers.CancelResponse

func (r cancelResult) Text() string {
	if r.Cancelled {
		return fmt.Sprintf("✓ Request %s cancelled", r.ID)
	}
	return fmt.Sprintf("Request %s is not in flight", r.ID)
}

func newCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <request-id>",
		Short: "Cancel an in-flight request on a running relay",
		Long: `Ask a running relay to cancel the in-flight request with the given ID.

The request ID is the X-Request-ID the client sent, or the one the relay
returned in the X-Request-ID response header. A request that already
finished is reported as not in flight.

Examples:
  relay cancel 3f6c2a8e-1d2b-4c6a-9a57-1f0d7f1e2b3c
  relay cancel my-request --addr http://relay.internal:8082 --api-key "$RELAY_CLIENT_KEY"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cancelFlags.timeout)
			defer cancel()

			res, err := cancelRequest(ctx, http.DefaultClient, cancelFlags.addr, cancelFlags.apiKey, args[0])
			if err != nil {
				return cli.NewCommandError("cancel", err)
			}
			return printResult(cmd, cancelResult(*res))
		},
	}

	cmd.Flags().StringVar(&cancelFlags.addr, "addr", "http://127.0.0.1:8082", "relay base URL")
	cmd.Flags().StringVar(&cancelFlags.apiKey, "api-key", "", "client API key, when the relay requires one")
	cmd.Flags().DurationVar(&cancelFlags.timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

// cancelRequest calls the relay's cancel endpoint for id.
func cancelRequest(ctx context.Context, client *http.Client, addr, apiKey, id string) (*handlers.CancelResponse, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("request id is required")
	}

	endpoint := strings.TrimRight(addr, "/") + "/v1/requests/" + url.PathEscape(id) + "/cancel"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid relay address: %w", err)
	}
	if apiKey != "" {
		req.Header.Set(proxy.APIKeyHeader, apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp types.ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("relay returned %d: %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("relay returned %d", resp.StatusCode)
	}

	var out handlers.CancelResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	return &out, nil
}
