package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/api"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/apperr"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/logger"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/validation"
)

// MinPasswordLength is enforced on registration.
const MinPasswordLength = 6

// Authenticator is the part of the API the session needs.
type Authenticator interface {
	Login(ctx context.Context, role models.Role, creds models.Credentials) (string, error)
	Register(ctx context.Context, creds models.Credentials) error
	Logout(ctx context.Context) error
}

// Listener is told about every identity change. nil means logged out.
type Listener func(*models.Identity)

// Manager owns the access token and the identity derived from it.
type Manager struct {
	auth   Authenticator
	tokens TokenStore
	log    *logger.Logger
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	identity  *models.Identity
	listeners []Listener
}

type Option func(*Manager)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(log *logger.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func NewManager(auth Authenticator, tokens TokenStore, opts ...Option) *Manager {
	m := &Manager{
		auth:   auth,
		tokens: tokens,
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers l for identity changes.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Login authenticates against the role's endpoint and persists the token.
func (m *Manager) Login(ctx context.Context, creds models.Credentials, role models.Role) (models.Identity, error) {
	const op = "session.Login"
	if !role.Valid() {
		return models.Identity{}, apperr.Newf(op, apperr.KindValidationFailed, "unknown role %q", role)
	}
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validation.Struct(op, creds); err != nil {
		return models.Identity{}, err
	}

	// 1. Exchange credentials
	raw, err := m.auth.Login(ctx, role, creds)
	if err != nil {
		return models.Identity{}, classifyAuth(op, err)
	}

	// 2. Decode identity locally
	id, err := DecodeToken(raw)
	if err != nil {
		m.log.Warn("login returned undecodable token", "role", role, "error", err)
		return models.Identity{}, err
	}
	if id.Role != role {
		return models.Identity{}, apperr.Newf(op, apperr.KindMalformed, "token role %q does not match requested role %q", id.Role, role)
	}

	// 3. Persist
	if err := m.tokens.Save(raw); err != nil {
		m.log.Warn("failed to persist session token", "error", err)
	}

	m.set(raw, &id)
	m.log.Info("logged in", "subject", id.Subject, "role", id.Role, "expires", id.TokenExpiry)
	return id, nil
}

// Register creates a student account. It does not log in.
func (m *Manager) Register(ctx context.Context, creds models.Credentials) error {
	const op = "session.Register"
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validation.Struct(op, creds); err != nil {
		return err
	}
	if err := validation.Var(op, "password", creds.Password, "min=6"); err != nil {
		return err
	}
	if err := m.auth.Register(ctx, creds); err != nil {
		status := api.StatusOf(err)
		detail := api.DetailOf(err)
		switch {
		case status == 0:
			return apperr.New(op, apperr.KindServerUnavailable, err)
		case status == 409 || strings.Contains(strings.ToLower(detail), "already exists"):
			return &apperr.Error{Op: op, Kind: apperr.KindAlreadyExists, Status: status, Detail: detail, Err: err}
		case status >= 500:
			return &apperr.Error{Op: op, Kind: apperr.KindServerUnavailable, Status: status, Detail: detail, Err: err}
		default:
			return &apperr.Error{Op: op, Kind: apperr.KindValidationFailed, Status: status, Detail: detail, Err: err}
		}
	}
	m.log.Info("registered student", "email", creds.Email)
	return nil
}

// Restore loads a persisted token at startup. An expired or unreadable token
// is treated as a logout: it is cleared and listeners are told.
func (m *Manager) Restore() (models.Identity, bool) {
	raw, err := m.tokens.Load()
	if err != nil {
		m.log.Warn("failed to read session state", "error", err)
		m.expire("unreadable state")
		return models.Identity{}, false
	}
	if raw == "" {
		return models.Identity{}, false
	}

	id, err := DecodeToken(raw)
	if err != nil {
		m.expire("malformed token")
		return models.Identity{}, false
	}
	if id.Expired(m.now()) {
		m.expire("expired token")
		return models.Identity{}, false
	}

	m.set(raw, &id)
	m.log.Debug("session restored", "subject", id.Subject, "role", id.Role)
	return id, true
}

// Logout clears the session everywhere. The server is told on a best-effort basis.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.RLock()
	hasToken := m.token != ""
	m.mu.RUnlock()

	if hasToken {
		if err := m.auth.Logout(ctx); err != nil {
			m.log.Debug("server logout failed", "error", err)
		}
	}
	m.clear()
	m.log.Info("logged out")
}

// Current returns the identity if the token is still fresh. Noticing an
// expired token performs the logout transition.
func (m *Manager) Current() (models.Identity, bool) {
	m.mu.RLock()
	id := m.identity
	m.mu.RUnlock()

	if id == nil {
		return models.Identity{}, false
	}
	if id.Expired(m.now()) {
		m.expire("expired token")
		return models.Identity{}, false
	}
	return *id, true
}

// Token implements api.TokenSource.
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil || m.identity.Expired(m.now()) {
		return "", false
	}
	return m.token, true
}

// RequireRole returns the current identity or an Unauthorized error when no
// fresh session with the given role exists.
func (m *Manager) RequireRole(op string, role models.Role) (models.Identity, error) {
	id, ok := m.Current()
	if !ok {
		return models.Identity{}, apperr.Newf(op, apperr.KindUnauthorized, "not logged in")
	}
	if id.Role != role {
		return models.Identity{}, apperr.Newf(op, apperr.KindUnauthorized, "requires %s session", role)
	}
	return id, nil
}

func (m *Manager) set(raw string, id *models.Identity) {
	m.mu.Lock()
	m.token = raw
	m.identity = id
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		l(id)
	}
}

func (m *Manager) expire(reason string) {
	m.log.Info("session invalidated", "reason", reason)
	m.clear()
}

func (m *Manager) clear() {
	if err := m.tokens.Clear(); err != nil {
		m.log.Warn("failed to clear session state", "error", err)
	}
	m.set("", nil)
}

func classifyAuth(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	status := api.StatusOf(err)
	if status == 0 {
		return apperr.New(op, apperr.KindServerUnavailable, err)
	}
	return &apperr.Error{
		Op:     op,
		Kind:   apperr.AuthKind(status),
		Status: status,
		Detail: api.DetailOf(err),
		Err:    err,
	}
}
