package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/crypto"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "admin-pass"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Port:           ":0",
		DataDir:        t.TempDir(),
		StorageType:    "local",
		JWTSecret:      "test-secret",
		AccessTokenTTL: 15 * time.Minute,
		AdminEmail:     testAdminEmail,
		AdminPassword:  testAdminPassword,
		MaxUploadBytes: 1 << 20,
		ProxyTimeout:   time.Second,
	}
}

func newTestApp(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := NewServer(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	app := httptest.NewServer(srv.Router())
	t.Cleanup(app.Close)
	return srv, app
}

func mustToken(t *testing.T, secret, subject string, role models.Role) string {
	t.Helper()
	token, err := crypto.NewAccessToken(secret, subject, string(role), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func doReq(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return out
}

func TestNewServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = ""
	srv, err := NewServer(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if srv.cfg.JWTSecret == "" {
		t.Error("expected a generated JWT secret")
	}
	acct, ok := srv.Storage.Account(testAdminEmail)
	if !ok || acct.Role != models.RoleAdmin {
		t.Errorf("admin should be seeded, got %+v", acct)
	}

	// Seeding again is idempotent.
	if _, err := NewServer(context.Background(), cfg, nil); err != nil {
		t.Errorf("second NewServer failed: %v", err)
	}

	cfg.StorageType = "s3"
	cfg.Bucket = ""
	if _, err := NewServer(context.Background(), cfg, nil); err == nil {
		t.Error("expected error for missing AWS_BUCKET")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ACCESS_TOKEN_TTL", "90")
	t.Setenv("PUBLIC_BASE_URL", "https://cdn.example.com/")
	t.Setenv("STORAGE_TYPE", "S3")

	cfg := LoadConfig()
	if cfg.Port != ":9000" {
		t.Errorf("expected :9000, got %s", cfg.Port)
	}
	if cfg.AccessTokenTTL != 90*time.Minute {
		t.Errorf("bare numbers are minutes, got %s", cfg.AccessTokenTTL)
	}
	if cfg.PublicBaseURL != "https://cdn.example.com" {
		t.Errorf("trailing slash should be trimmed, got %s", cfg.PublicBaseURL)
	}
	if cfg.StorageType != "s3" {
		t.Errorf("storage type should be lowercased, got %s", cfg.StorageType)
	}
}

func TestHealth(t *testing.T) {
	_, app := newTestApp(t)
	resp := doReq(t, http.MethodGet, app.URL+"/api/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
