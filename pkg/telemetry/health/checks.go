package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrCheckTimeout is reported when a health check does not finish in time.
var ErrCheckTimeout = errors.New("health check timeout")

// UpstreamCheck returns a check that opens a TCP connection to the host of
// baseURL. It verifies reachability only; no request is sent.
func UpstreamCheck(baseURL string) CheckFunc {
	return func(ctx context.Context) error {
		addr, err := dialAddress(baseURL)
		if err != nil {
			return err
		}

		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("upstream %s unreachable: %w", addr, err)
		}
		return conn.Close()
	}
}

// dialAddress returns host:port for a URL, defaulting the port from the
// scheme.
func dialAddress(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid upstream URL: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid upstream URL %q: missing host", rawURL)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http":
			port = "80"
		default:
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
