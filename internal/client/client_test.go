package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/apperr"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/crypto"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/router"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/store"
)

type mockServer struct {
	*httptest.Server
	courses []models.Course
	posts   atomic.Int32
	logouts atomic.Int32
}

// newMockServer answers the endpoints the CLI commands touch.
func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{courses: []models.Course{}}
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /api/auth/{role}/login", func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]string{"detail": "Incorrect email or password"})
			return
		}
		token, _ := crypto.NewAccessToken("k", creds.Email, r.PathValue("role"), time.Hour)
		writeJSON(w, models.TokenResponse{AccessToken: token, TokenType: "bearer"})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		m.logouts.Add(1)
		writeJSON(w, map[string]string{"message": "ok"})
	})
	mux.HandleFunc("GET /api/courses", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, m.courses)
	})
	mux.HandleFunc("GET /api/student/courses", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []models.Course{})
	})
	mux.HandleFunc("GET /api/admin/courses", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, m.courses)
	})
	mux.HandleFunc("POST /api/admin/courses", func(w http.ResponseWriter, r *http.Request) {
		m.posts.Add(1)
		var in models.CourseInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, models.Course{ID: 42, Title: in.Title, IsActive: true})
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/notes.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("om namah shivaya\n"))
	})
	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Close)
	return m
}

// runCmd executes one CLI invocation against the config in dir.
func runCmd(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--config", filepath.Join(dir, "config.yaml")))
	err := root.Execute()
	return out.String(), err
}

func setupConfig(t *testing.T, serverURL string) string {
	t.Helper()
	dir := t.TempDir()
	if _, err := runCmd(t, dir, "config", "set-server", serverURL); err != nil {
		t.Fatalf("set-server failed: %v", err)
	}
	return dir
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	out, err := runCmd(t, dir, "config", "set-server", "http://example.com:9000/")
	if err != nil {
		t.Fatalf("set-server failed: %v", err)
	}
	if !strings.Contains(out, "Server URL set to") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = runCmd(t, dir, "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	path := strings.TrimSpace(out)
	if path != filepath.Join(dir, "config.yaml") {
		t.Errorf("expected config path in %s, got %q", dir, path)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.ServerURL != "http://example.com:9000" {
		t.Errorf("expected saved server URL, got %q", s.ServerURL)
	}
	if s.StateFile != filepath.Join(dir, "state.json") {
		t.Errorf("state file should sit next to config, got %q", s.StateFile)
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing config should use defaults: %v", err)
	}
	if s.Cache.Backend != "memory" || s.Preview.PDFWait != 4*time.Second || s.HTTPTimeout != 30*time.Second {
		t.Errorf("unexpected defaults %+v", s)
	}
}

func TestLoadSettings_Env(t *testing.T) {
	t.Setenv("SLOKA_CACHE_BACKEND", "redis")
	t.Setenv("SLOKA_PREVIEW_PDF_WAIT", "2s")
	t.Setenv("SLOKA_SERVER_URL", "http://env.example.com")

	s, err := LoadSettings(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Cache.Backend != "redis" {
		t.Errorf("expected redis backend, got %q", s.Cache.Backend)
	}
	if s.Preview.PDFWait != 2*time.Second {
		t.Errorf("expected 2s pdf wait, got %s", s.Preview.PDFWait)
	}
	if s.ServerURL != "http://env.example.com" {
		t.Errorf("expected env server URL, got %q", s.ServerURL)
	}
}

func TestNewApp_UnknownCache(t *testing.T) {
	s, _ := LoadSettings(filepath.Join(t.TempDir(), "config.yaml"))
	s.Cache.Backend = "memcached"
	if _, err := NewApp(s, nil); err == nil {
		t.Error("expected error for unknown cache backend")
	}
}

func TestPing(t *testing.T) {
	m := newMockServer(t)
	dir := setupConfig(t, m.URL)

	out, err := runCmd(t, dir, "ping")
	if err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if !strings.Contains(out, "Pong!") {
		t.Errorf("expected pong, got %q", out)
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	m := newMockServer(t)
	dir := setupConfig(t, m.URL)

	_, err := runCmd(t, dir, "login", "--admin", "--email", "admin@example.com", "--password", "wrong")
	if !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	out, err := runCmd(t, dir, "login", "--admin", "--email", "admin@example.com", "--password", "secret1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(out, "Logged in as admin@example.com (admin)") {
		t.Errorf("unexpected login output %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "state.json")); err != nil {
		t.Errorf("session should be persisted: %v", err)
	}

	// A new invocation restores the session from the state file.
	out, _ = runCmd(t, dir, "whoami")
	if !strings.Contains(out, "admin@example.com (admin)") {
		t.Errorf("session not restored, got %q", out)
	}

	if _, err := runCmd(t, dir, "logout"); err != nil {
		t.Fatal(err)
	}
	if m.logouts.Load() != 1 {
		t.Errorf("server should be told about logout once, got %d", m.logouts.Load())
	}
	out, _ = runCmd(t, dir, "whoami")
	if !strings.Contains(out, "Not logged in.") {
		t.Errorf("expected logged out, got %q", out)
	}
}

func TestLogin_RoleHints(t *testing.T) {
	m := newMockServer(t)
	dir := setupConfig(t, m.URL)

	tests := []struct {
		name    string
		args    []string
		want    string
		notWant string
	}{
		{
			name:    "student",
			args:    []string{"login", "--email", "a@b.com", "--password", "wrong"},
			want:    "register if you don't have an account",
			notWant: "Invalid admin credentials",
		},
		{
			name:    "admin",
			args:    []string{"login", "--admin", "--email", "admin@example.com", "--password", "wrong"},
			want:    "Invalid admin credentials",
			notWant: "register",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, dir, tt.args...)
			if !errors.Is(err, apperr.ErrInvalidCredentials) {
				t.Fatalf("expected invalid credentials, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected hint %q in %q", tt.want, err.Error())
			}
			if strings.Contains(err.Error(), tt.notWant) {
				t.Errorf("unexpected %q in %q", tt.notWant, err.Error())
			}
		})
	}
}

func newTestApp(t *testing.T, serverURL string, busy io.Writer) *App {
	t.Helper()
	s, err := LoadSettings(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	s.ServerURL = serverURL
	a, err := NewApp(s, busy)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestLogout_PurgesViewerCache(t *testing.T) {
	m := newMockServer(t)
	a := newTestApp(t, m.URL, nil)
	ctx := context.Background()

	if _, err := a.Session.Login(ctx, models.Credentials{Email: "admin@example.com", Password: "secret1"}, models.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Store.AdminCourses(ctx); err != nil {
		t.Fatal(err)
	}
	if !a.Store.Cached(ctx, store.AdminCoursesScope) {
		t.Fatal("admin courses should be cached")
	}

	a.Logout(ctx)
	a.Store.SetNamespace("admin:admin@example.com")
	if a.Store.Cached(ctx, store.AdminCoursesScope) {
		t.Error("logout must drop the admin's cached courses")
	}
}

func TestNewApp_RouterFollowsSession(t *testing.T) {
	m := newMockServer(t)
	a := newTestApp(t, m.URL, nil)
	ctx := context.Background()

	if _, err := a.Session.Login(ctx, models.Credentials{Email: "admin@example.com", Password: "secret1"}, models.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if v := a.Router.View(); v.State != router.StateAdmin || v.CoursesPlaceholder != router.NoAdminCourses {
		t.Errorf("expected admin dashboard after login, got %+v", v)
	}
	a.Logout(ctx)
	if v := a.Router.View(); v.State != router.StateLoggedOut {
		t.Errorf("expected logged-out view, got %s", v.State)
	}
}

func TestBusyIndicator(t *testing.T) {
	m := newMockServer(t)
	var busy bytes.Buffer
	a := newTestApp(t, m.URL, &busy)
	ctx := context.Background()

	if _, err := a.Session.Login(ctx, models.Credentials{Email: "admin@example.com", Password: "secret1"}, models.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if _, err := a.CRUD.CreateCourse(ctx, models.CourseInput{Title: "Gita"}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(busy.String()), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "...") || !strings.HasSuffix(lines[1], " done") {
		t.Errorf("expected begin and done lines, got %q", busy.String())
	}
}

func TestRun_ClosesAppOnError(t *testing.T) {
	c := &cli{cfgFile: filepath.Join(t.TempDir(), "config.yaml")}
	closed := false
	runE := c.run(func(_ context.Context, _ *cobra.Command, a *App, _ []string) error {
		a.closers = append(a.closers, func() error {
			closed = true
			return nil
		})
		return errors.New("boom")
	})

	if err := runE(&cobra.Command{}, nil); err == nil {
		t.Fatal("expected the command error")
	}
	if !closed {
		t.Error("app should be closed after a failing command")
	}
	if c.app != nil {
		t.Error("closed app should be released")
	}
}

func TestLogin_PasswordFromEnv(t *testing.T) {
	m := newMockServer(t)
	dir := setupConfig(t, m.URL)
	t.Setenv("SLOKA_PASSWORD", "secret1")

	if _, err := runCmd(t, dir, "login", "--admin", "--email", "admin@example.com"); err != nil {
		t.Fatalf("login with env password failed: %v", err)
	}
}

func TestCoursesList_Placeholder(t *testing.T) {
	m := newMockServer(t)
	dir := setupConfig(t, m.URL)

	out, err := runCmd(t, dir, "courses", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, router.NoPublicCourses) {
		t.Errorf("expected placeholder, got %q", out)
	}

	out, err = runCmd(t, dir, "dashboard")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Available courses") || !strings.Contains(out, router.NoPublicCourses) {
		t.Errorf("unexpected dashboard %q", out)
	}
}

func TestCoursesCreate_RequiresAdmin(t *testing.T) {
	m := newMockServer(t)
	dir := setupConfig(t, m.URL)

	_, err := runCmd(t, dir, "courses", "create", "--title", "Gita")
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if m.posts.Load() != 0 {
		t.Error("no request should be sent without an admin session")
	}

	if _, err := runCmd(t, dir, "login", "--admin", "--email", "admin@example.com", "--password", "secret1"); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, dir, "courses", "create", "--title", "Gita")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.Contains(out, "Created course #42 Gita") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestDashboard_TabOutsideAdmin(t *testing.T) {
	m := newMockServer(t)
	dir := setupConfig(t, m.URL)

	_, err := runCmd(t, dir, "dashboard", "--tab", "students")
	if !errors.Is(err, router.ErrNotAdminView) {
		t.Errorf("expected ErrNotAdminView, got %v", err)
	}
}

func TestPreview(t *testing.T) {
	m := newMockServer(t)
	dir := setupConfig(t, m.URL)
	dl := t.TempDir()

	out, err := runCmd(t, dir, "preview", "/files/notes.txt", "--download", dl)
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if !strings.Contains(out, "notes.txt [text] rendered") || !strings.Contains(out, "om namah shivaya") {
		t.Errorf("unexpected preview %q", out)
	}
	data, err := os.ReadFile(filepath.Join(dl, "notes.txt"))
	if err != nil || string(data) != "om namah shivaya\n" {
		t.Errorf("download not saved: %v %q", err, data)
	}

	out, err = runCmd(t, dir, "preview", "/files/missing.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "failed") {
		t.Errorf("missing file should fail the probe, got %q", out)
	}
}

func TestParseID(t *testing.T) {
	for _, bad := range []string{"", "0", "-3", "abc"} {
		if _, err := parseID("course", bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
	if id, err := parseID("course", "7"); err != nil || id != 7 {
		t.Errorf("expected 7, got %d %v", id, err)
	}
}
