package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/apperr"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/crypto"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/logger"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/validation"
)

type contextKey string

const claimsContextKey contextKey = "claims"

type Handler struct {
	Storage *Storage
	cfg     Config
	log     *logger.Logger
	proxy   *http.Client
}

func NewHandler(storage *Storage, cfg Config, log *logger.Logger) *Handler {
	return &Handler{
		Storage: storage,
		cfg:     cfg,
		log:     log,
		proxy:   &http.Client{Timeout: cfg.ProxyTimeout},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func claimsFrom(ctx context.Context) *crypto.Claims {
	c, _ := ctx.Value(claimsContextKey).(*crypto.Claims)
	return c
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AuthMiddleware requires a valid bearer token of the given role.
func (h *Handler) AuthMiddleware(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			if h.Storage.IsRevoked(token) {
				writeError(w, http.StatusUnauthorized, "Session has ended")
				return
			}
			claims, err := crypto.ParseToken(h.cfg.JWTSecret, token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}
			if role != "" && models.Role(claims.Type) != role {
				writeError(w, http.StatusForbidden, "Not authorized as "+string(role))
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validation.Struct("register", creds); err != nil {
		writeError(w, http.StatusUnprocessableEntity, detailOf(err))
		return
	}
	if err := validation.Var("register", "password", creds.Password, "min=6"); err != nil {
		writeError(w, http.StatusUnprocessableEntity, detailOf(err))
		return
	}

	hash, err := crypto.HashPassword(creds.Password)
	if err != nil {
		h.log.Error("failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create account. Please try again.")
		return
	}
	if _, err := h.Storage.CreateAccount(creds.Email, hash, models.RoleStudent); err != nil {
		if errors.Is(err, ErrExists) {
			writeError(w, http.StatusBadRequest, "An account with this email already exists. Please try logging in instead.")
			return
		}
		h.log.Error("failed to create account", "email", creds.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create account. Please try again.")
		return
	}
	h.log.Info("student registered", "email", creds.Email)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Account created successfully"})
}

// Login returns a handler for the role's login endpoint.
func (h *Handler) Login(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		// 1. Find account
		acct, ok := h.Storage.Account(creds.Email)
		if !ok || acct.Role != role {
			h.log.Warn("login for unknown account", "role", role, "email", creds.Email)
			writeError(w, http.StatusUnauthorized, "Incorrect email or password")
			return
		}
		if !acct.IsActive {
			writeError(w, http.StatusUnauthorized, "Your account has been deactivated. Please contact support for assistance.")
			return
		}

		// 2. Verify password
		if err := crypto.CheckPassword(acct.PasswordHash, creds.Password); err != nil {
			writeError(w, http.StatusUnauthorized, "Incorrect email or password")
			return
		}

		// 3. Issue token
		token, err := crypto.NewAccessToken(h.cfg.JWTSecret, acct.Email, string(role), h.cfg.AccessTokenTTL)
		if err != nil {
			h.log.Error("failed to sign token", "error", err)
			writeError(w, http.StatusInternalServerError, "Login failed")
			return
		}
		h.log.Info("login", "role", role, "email", acct.Email)
		writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: token, TokenType: "bearer"})
	}
}

// Logout revokes the presented token, if any.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		if claims, err := crypto.ParseToken(h.cfg.JWTSecret, token); err == nil && claims.ExpiresAt != nil {
			h.Storage.RevokeToken(token, claims.ExpiresAt.Time)
		} else {
			h.Storage.RevokeToken(token, time.Now().Add(h.cfg.AccessTokenTTL))
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func detailOf(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Detail != "" {
		return ae.Detail
	}
	return err.Error()
}
