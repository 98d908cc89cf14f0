package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/api"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/apperr"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
)

type recorder struct {
	mu     sync.Mutex
	events []*models.Identity
}

func (r *recorder) listen(id *models.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, id)
}

func (r *recorder) last() (*models.Identity, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil, 0
	}
	return r.events[len(r.events)-1], len(r.events)
}

// authServer accepts a@b.com/secret1 on both login endpoints.
func authServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != 0 {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "nope"})
			return
		}
		var role string
		switch r.URL.Path {
		case "/api/auth/student/login":
			role = "student"
		case "/api/auth/admin/login":
			role = "admin"
		case "/api/auth/logout":
			w.WriteHeader(http.StatusOK)
			return
		case "/api/auth/student/register":
			var creds models.Credentials
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds.Email == "taken@b.com" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Email already exists"})
				return
			}
			w.WriteHeader(http.StatusCreated)
			return
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var creds models.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Email != "a@b.com" || creds.Password != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect email or password"})
			return
		}
		_ = json.NewEncoder(w).Encode(models.TokenResponse{
			AccessToken: mintToken(t, creds.Email, role, time.Now().Add(time.Hour)),
			TokenType:   "bearer",
		})
	}))
}

func newTestManager(serverURL string, tokens TokenStore, opts ...Option) (*Manager, *api.Client) {
	client := api.New(serverURL)
	m := NewManager(client, tokens, opts...)
	client.SetTokenSource(m)
	return m, client
}

func TestLogin_Student(t *testing.T) {
	server := authServer(t, 0)
	defer server.Close()

	tokens := &MemoryTokenStore{}
	m, _ := newTestManager(server.URL, tokens)
	rec := &recorder{}
	m.Subscribe(rec.listen)

	id, err := m.Login(context.Background(), models.Credentials{Email: "a@b.com", Password: "secret1"}, models.RoleStudent)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if id.Subject != "a@b.com" || id.Role != models.RoleStudent {
		t.Errorf("unexpected identity %+v", id)
	}

	saved, _ := tokens.Load()
	if saved == "" {
		t.Error("expected token to be persisted")
	}
	got, n := rec.last()
	if n != 1 || got == nil || got.Subject != "a@b.com" {
		t.Errorf("expected one login notification, got %d (%v)", n, got)
	}
	if tok, ok := m.Token(); !ok || tok != saved {
		t.Error("expected Token to return the persisted token")
	}
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		creds  models.Credentials
		want   error
	}{
		{"wrong password", 0, models.Credentials{Email: "a@b.com", Password: "wrong"}, apperr.ErrInvalidCredentials},
		{"server error", http.StatusInternalServerError, models.Credentials{Email: "a@b.com", Password: "secret1"}, apperr.ErrServerUnavailable},
		{"bad email", 0, models.Credentials{Email: "not-an-email", Password: "secret1"}, apperr.ErrValidationFailed},
		{"empty password", 0, models.Credentials{Email: "a@b.com"}, apperr.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := authServer(t, tt.status)
			defer server.Close()

			tokens := &MemoryTokenStore{}
			m, _ := newTestManager(server.URL, tokens)
			_, err := m.Login(context.Background(), tt.creds, models.RoleStudent)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if saved, _ := tokens.Load(); saved != "" {
				t.Error("failed login must not persist a token")
			}
			if _, ok := m.Current(); ok {
				t.Error("failed login must not set an identity")
			}
		})
	}
}

func TestLogin_Unreachable(t *testing.T) {
	server := authServer(t, 0)
	url := server.URL
	server.Close()

	m, _ := newTestManager(url, &MemoryTokenStore{})
	_, err := m.Login(context.Background(), models.Credentials{Email: "a@b.com", Password: "secret1"}, models.RoleAdmin)
	if !errors.Is(err, apperr.ErrServerUnavailable) {
		t.Errorf("expected ServerUnavailable, got %v", err)
	}
}

func TestRestore(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		token   string
		wantOK  bool
		cleared bool
	}{
		{"valid", mintToken(t, "a@b.com", "admin", now.Add(time.Hour)), true, false},
		{"expired", mintToken(t, "a@b.com", "admin", now.Add(-time.Minute)), false, true},
		{"malformed", "junk", false, true},
		{"empty", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &MemoryTokenStore{}
			_ = tokens.Save(tt.token)
			m := NewManager(nil, tokens, WithClock(func() time.Time { return now }))

			id, ok := m.Restore()
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && (id.Subject != "a@b.com" || id.Role != models.RoleAdmin) {
				t.Errorf("unexpected identity %+v", id)
			}
			saved, _ := tokens.Load()
			if tt.cleared && saved != "" {
				t.Error("expected persisted token to be cleared")
			}
		})
	}
}

func TestCurrent_ExpiresDuringUse(t *testing.T) {
	now := time.Now()
	clock := now
	tokens := &MemoryTokenStore{}
	_ = tokens.Save(mintToken(t, "a@b.com", "student", now.Add(time.Minute)))

	m := NewManager(nil, tokens, WithClock(func() time.Time { return clock }))
	rec := &recorder{}
	m.Subscribe(rec.listen)

	if _, ok := m.Restore(); !ok {
		t.Fatal("expected restore to succeed")
	}

	clock = now.Add(2 * time.Minute)
	if _, ok := m.Token(); ok {
		t.Error("expired token must not be handed out")
	}
	if _, ok := m.Current(); ok {
		t.Error("expected no current identity after expiry")
	}
	got, _ := rec.last()
	if got != nil {
		t.Error("expected a logout notification")
	}
	if saved, _ := tokens.Load(); saved != "" {
		t.Error("expected token to be cleared")
	}
}

func TestLogout(t *testing.T) {
	var logoutCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/logout" {
			logoutCalls++
			if r.Header.Get("Authorization") == "" {
				t.Error("logout should carry the bearer token")
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tokens := &MemoryTokenStore{}
	_ = tokens.Save(mintToken(t, "a@b.com", "admin", time.Now().Add(time.Hour)))
	m, _ := newTestManager(server.URL, tokens)
	rec := &recorder{}
	m.Subscribe(rec.listen)
	m.Restore()

	m.Logout(context.Background())

	if logoutCalls != 1 {
		t.Errorf("expected 1 logout call, got %d", logoutCalls)
	}
	if _, ok := m.Current(); ok {
		t.Error("expected logged out")
	}
	if saved, _ := tokens.Load(); saved != "" {
		t.Error("expected token cleared")
	}
	got, n := rec.last()
	if n != 2 || got != nil {
		t.Errorf("expected login then logout notifications, got %d", n)
	}
}

func TestRegister(t *testing.T) {
	server := authServer(t, 0)
	defer server.Close()
	m, _ := newTestManager(server.URL, &MemoryTokenStore{})
	ctx := context.Background()

	if err := m.Register(ctx, models.Credentials{Email: "new@b.com", Password: "secret1"}); err != nil {
		t.Errorf("Register failed: %v", err)
	}
	if _, ok := m.Current(); ok {
		t.Error("registration must not log in")
	}

	err := m.Register(ctx, models.Credentials{Email: "taken@b.com", Password: "secret1"})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("expected AlreadyExists, got %v", err)
	}

	err = m.Register(ctx, models.Credentials{Email: "new@b.com", Password: "123"})
	if !errors.Is(err, apperr.ErrValidationFailed) {
		t.Errorf("expected ValidationFailed for short password, got %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	tokens := &MemoryTokenStore{}
	m := NewManager(nil, tokens)

	if _, err := m.RequireRole("test", models.RoleAdmin); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected Unauthorized when logged out, got %v", err)
	}

	_ = tokens.Save(mintToken(t, "s@b.com", "student", time.Now().Add(time.Hour)))
	m.Restore()
	if _, err := m.RequireRole("test", models.RoleAdmin); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected Unauthorized for student, got %v", err)
	}
	if _, err := m.RequireRole("test", models.RoleStudent); err != nil {
		t.Errorf("expected student role to pass, got %v", err)
	}
}
