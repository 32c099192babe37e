package transport

import (
	"errors"
	"strings"
	"testing"
)

func TestDeriveRealtimeURL(t *testing.T) {
	cases := []struct {
		name string
		base string
		want string
	}{
		{"https with v1", "https://api.openai.com/v1", "wss://api.openai.com/v1/realtime"},
		{"https without v1", "https://api.openai.com", "wss://api.openai.com/v1/realtime"},
		{"trailing slash", "https://api.openai.com/v1/", "wss://api.openai.com/v1/realtime"},
		{"http upgrades to wss", "http://localhost:8080/v1", "wss://localhost:8080/v1/realtime"},
		{"ws upgrades to wss", "ws://localhost:8080/v1", "wss://localhost:8080/v1/realtime"},
		{"proxy prefix kept", "https://proxy.example.com/openai/v1", "wss://proxy.example.com/openai/v1/realtime"},
		{"already wss", "wss://gateway.example.com", "wss://gateway.example.com/v1/realtime"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DeriveRealtimeURL(tc.base)
			if err != nil {
				t.Fatalf("DeriveRealtimeURL(%q): %v", tc.base, err)
			}
			if got != tc.want {
				t.Fatalf("DeriveRealtimeURL(%q) = %q, want %q", tc.base, got, tc.want)
			}
			if strings.Contains(got, "/v1/v1") {
				t.Fatalf("derived URL %q duplicates the version segment", got)
			}
			if !strings.HasPrefix(got, "wss://") {
				t.Fatalf("derived URL %q is not secure", got)
			}
		})
	}
}

func TestDeriveRealtimeURLRejectsEmptyBase(t *testing.T) {
	if _, err := DeriveRealtimeURL(""); !errors.Is(err, ErrMissingEndpoint) {
		t.Fatalf("got %v, want ErrMissingEndpoint", err)
	}
}

func TestDeriveRealtimeURLRejectsOddScheme(t *testing.T) {
	if _, err := DeriveRealtimeURL("ftp://api.example.com"); err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}
