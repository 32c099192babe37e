package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestIssueRealtimeCredentials(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/realtime/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)

		json.NewEncoder(w).Encode(map[string]string{
			"client_secret": "ek_from_gateway",
			"base_url":      "https://api.openai.com/v1",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "user-jwt", "luna", zaptest.NewLogger(t))
	creds, err := client.IssueRealtimeCredentials(context.Background())
	if err != nil {
		t.Fatalf("IssueRealtimeCredentials: %v", err)
	}

	if creds.ClientSecret != "ek_from_gateway" {
		t.Fatalf("client secret = %q", creds.ClientSecret)
	}
	if creds.BaseURL != "https://api.openai.com/v1" {
		t.Fatalf("base URL = %q", creds.BaseURL)
	}
	if gotAuth != "Bearer user-jwt" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotBody["personality_id"] != "luna" {
		t.Fatalf("personality_id = %q", gotBody["personality_id"])
	}
}

func TestIssueRealtimeCredentialsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"realtime_unavailable"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "user-jwt", "luna", zaptest.NewLogger(t))
	if _, err := client.IssueRealtimeCredentials(context.Background()); err == nil {
		t.Fatal("expected error on gateway failure")
	}
}
