package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/zinohome/cozychat-voice/adapters"
	"github.com/zinohome/cozychat-voice/adapters/openai"
	"github.com/zinohome/cozychat-voice/domain/entities"
	"github.com/zinohome/cozychat-voice/domain/repositories"
	"github.com/zinohome/cozychat-voice/internal/auth"
	"github.com/zinohome/cozychat-voice/usecase"
)

type fixedSTT struct {
	text string
}

func (f *fixedSTT) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	return f.text, nil
}

type testHarness struct {
	echo          *echo.Echo
	users         *adapters.MemoryUserRepository
	sessions      *adapters.MemorySessionRepository
	authenticator *auth.Authenticator
}

func newTestHarness(t *testing.T, openaiURL string) *testHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	users := adapters.NewMemoryUserRepository()
	personalities := adapters.NewMemoryPersonalityRepository()
	sessions := adapters.NewMemorySessionRepository()

	authenticator, err := auth.NewAuthenticator("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}

	if openaiURL == "" {
		openaiURL = "http://localhost:1" // tests that never mint
	}
	realtime, err := openai.NewRealtimeSessions("sk-test", openaiURL, logger)
	if err != nil {
		t.Fatalf("NewRealtimeSessions: %v", err)
	}

	clips := usecase.NewVoiceClipService(sessions, &fixedSTT{text: "hello there"}, logger)

	e := echo.New()
	NewServer(users, personalities, sessions, clips, authenticator, realtime, logger).InitRoutes(e)

	return &testHarness{
		echo:          e,
		users:         users,
		sessions:      sessions,
		authenticator: authenticator,
	}
}

func (h *testHarness) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := h.authenticator.GenerateUserToken(userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("GenerateUserToken: %v", err)
	}
	return token
}

func (h *testHarness) do(method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h := newTestHarness(t, "")

	rec := h.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUserRegisterIssuesToken(t *testing.T) {
	h := newTestHarness(t, "")

	body, _ := json.Marshal(RegisterRequest{Email: "ana@example.com", Name: "Ana"})
	rec := h.do(http.MethodPost, "/api/v1/users/register", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" || resp.UserID == "" {
		t.Fatalf("expected token and user id, got %+v", resp)
	}

	claims, err := h.authenticator.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.UserID != resp.UserID {
		t.Errorf("token user %q, response user %q", claims.UserID, resp.UserID)
	}
}

func TestUserRegisterRejectsDuplicateEmail(t *testing.T) {
	h := newTestHarness(t, "")

	body, _ := json.Marshal(RegisterRequest{Email: "ana@example.com", Name: "Ana"})
	if rec := h.do(http.MethodPost, "/api/v1/users/register", "", body); rec.Code != http.StatusOK {
		t.Fatalf("first register: expected 200, got %d", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/api/v1/users/register", "", body); rec.Code != http.StatusConflict {
		t.Fatalf("second register: expected 409, got %d", rec.Code)
	}
}

func TestUserLogin(t *testing.T) {
	h := newTestHarness(t, "")

	body, _ := json.Marshal(LoginRequest{Email: "ghost@example.com"})
	if rec := h.do(http.MethodPost, "/api/v1/users/login", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown account: expected 401, got %d", rec.Code)
	}

	register, _ := json.Marshal(RegisterRequest{Email: "ana@example.com", Name: "Ana"})
	h.do(http.MethodPost, "/api/v1/users/register", "", register)

	login, _ := json.Marshal(LoginRequest{Email: "ana@example.com"})
	rec := h.do(http.MethodPost, "/api/v1/users/login", "", login)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
}

func TestAuthenticatedRoutesRejectBadTokens(t *testing.T) {
	h := newTestHarness(t, "")

	if rec := h.do(http.MethodGet, "/api/v1/sessions", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/api/v1/sessions", "not-a-jwt", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", rec.Code)
	}
}

func TestListPersonalities(t *testing.T) {
	h := newTestHarness(t, "")
	token := h.tokenFor(t, "user-1")

	rec := h.do(http.MethodGet, "/api/v1/personalities", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var personalities []*entities.Personality
	if err := json.Unmarshal(rec.Body.Bytes(), &personalities); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(personalities) == 0 {
		t.Fatal("expected seeded personalities")
	}
}

func TestSessionOwnership(t *testing.T) {
	h := newTestHarness(t, "")

	session := entities.NewSession("user-1", "luna")
	if err := h.sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	owner := h.tokenFor(t, "user-1")
	stranger := h.tokenFor(t, "user-2")

	if rec := h.do(http.MethodGet, "/api/v1/sessions/"+session.ID, owner, nil); rec.Code != http.StatusOK {
		t.Fatalf("owner get: expected 200, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/api/v1/sessions/"+session.ID, stranger, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger get: expected 403, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/api/v1/sessions/no-such-id", owner, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing session: expected 404, got %d", rec.Code)
	}
	if rec := h.do(http.MethodDelete, "/api/v1/sessions/"+session.ID, stranger, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger delete: expected 403, got %d", rec.Code)
	}
	if rec := h.do(http.MethodDelete, "/api/v1/sessions/"+session.ID, owner, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("owner delete: expected 204, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/api/v1/sessions/"+session.ID, owner, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted session: expected 404, got %d", rec.Code)
	}
}

func TestUploadVoiceClip(t *testing.T) {
	h := newTestHarness(t, "")

	session := entities.NewSession("user-1", "luna")
	if err := h.sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	token := h.tokenFor(t, "user-1")

	wav := bytes.Repeat([]byte{0x01}, 256)
	rec := h.do(http.MethodPost, "/api/v1/sessions/"+session.ID+"/voice-clips?duration_ms=1500", token, wav)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp VoiceClipResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Content != "hello there" {
		t.Errorf("expected transcribed content, got %q", resp.Content)
	}
	if resp.DurationMs != 1500 {
		t.Errorf("expected duration 1500ms, got %d", resp.DurationMs)
	}

	stored, err := h.sessions.GetByID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if len(stored.Messages) != 1 || stored.Messages[0].Source != entities.MessageSourceVoiceClip {
		t.Errorf("expected one voice clip message, got %+v", stored.Messages)
	}
}

func TestUploadVoiceClipRejectsEmptyBody(t *testing.T) {
	h := newTestHarness(t, "")

	session := entities.NewSession("user-1", "luna")
	if err := h.sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	token := h.tokenFor(t, "user-1")

	rec := h.do(http.MethodPost, "/api/v1/sessions/"+session.ID+"/voice-clips?duration_ms=1500", token, []byte{})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestMintRealtimeSession(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime/sessions" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["voice"] != "shimmer" {
			t.Errorf("expected personality voice shimmer, got %v", payload["voice"])
		}
		if payload["instructions"] == nil {
			t.Error("expected personality instructions to be forwarded")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"client_secret": map[string]interface{}{
				"value":      "ek_test_123",
				"expires_at": time.Now().Add(time.Minute).Unix(),
			},
		})
	}))
	defer backend.Close()

	h := newTestHarness(t, backend.URL)
	token := h.tokenFor(t, "user-1")

	body, _ := json.Marshal(RealtimeSessionRequest{PersonalityID: "luna"})
	rec := h.do(http.MethodPost, "/api/v1/realtime/sessions", token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp RealtimeSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ClientSecret != "ek_test_123" {
		t.Errorf("expected minted secret, got %q", resp.ClientSecret)
	}
	if resp.BaseURL != backend.URL {
		t.Errorf("expected base url %q, got %q", backend.URL, resp.BaseURL)
	}
}

func TestMintRealtimeSessionUnknownPersonality(t *testing.T) {
	h := newTestHarness(t, "")
	token := h.tokenFor(t, "user-1")

	body, _ := json.Marshal(RealtimeSessionRequest{PersonalityID: "nobody"})
	rec := h.do(http.MethodPost, "/api/v1/realtime/sessions", token, body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
