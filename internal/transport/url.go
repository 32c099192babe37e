package transport

import (
	"fmt"
	"net/url"
	"strings"
)

// DeriveRealtimeURL turns an HTTP(S) API base URL into the websocket
// endpoint of its realtime service: the scheme is rewritten to wss, any
// trailing /v1 on the base path is stripped, and the /v1/realtime path is
// appended once. The ephemeral credential travels over this socket, so
// plaintext schemes are never derived.
func DeriveRealtimeURL(base string) (string, error) {
	if base == "" {
		return "", ErrMissingEndpoint
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	switch u.Scheme {
	case "https", "wss", "http", "ws":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in base URL", u.Scheme)
	}

	path := strings.TrimSuffix(u.Path, "/")
	path = strings.TrimSuffix(path, "/v1")
	u.Path = path + "/v1/realtime"

	return u.String(), nil
}
