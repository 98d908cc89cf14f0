package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/crypto"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/logger"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
)

// Server represents the HTTP server.
type Server struct {
	cfg     Config
	log     *logger.Logger
	Storage *Storage
	Handler *Handler
	Server  *http.Server
}

// NewServer opens storage, seeds the admin account and builds the routes.
func NewServer(ctx context.Context, cfg Config, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Port == "" {
		cfg.Port = normalizePort(cfg.Port)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "server_data"
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 24 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.ProxyTimeout <= 0 {
		cfg.ProxyTimeout = 30 * time.Second
	}
	if cfg.JWTSecret == "" {
		secret, err := crypto.NewSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.JWTSecret = secret
		log.Warn("JWT_SECRET not set, tokens will not survive a restart")
	}

	var blobs BlobStore
	switch cfg.StorageType {
	case "s3":
		if cfg.Bucket == "" {
			return nil, errors.New("AWS_BUCKET required for s3 storage")
		}
		s3Store, err := NewS3BlobStore(ctx, cfg.Bucket, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 blob store: %w", err)
		}
		log.Info("using S3 storage", "bucket", cfg.Bucket)
		blobs = s3Store
	default:
		log.Info("using local storage", "dir", cfg.DataDir)
		blobs = NewLocalBlobStore(filepath.Join(cfg.DataDir, "blobs"))
	}

	store, err := NewStorage(cfg.DataDir, blobs)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	if err := seedAdmin(store, cfg); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		Storage: store,
		Handler: NewHandler(store, cfg, log),
	}
	s.Server = &http.Server{
		Addr:              cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func seedAdmin(store *Storage, cfg Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	if _, ok := store.Account(cfg.AdminEmail); ok {
		return nil
	}
	hash, err := crypto.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	if _, err := store.CreateAccount(cfg.AdminEmail, hash, models.RoleAdmin); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	return nil
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	h := s.Handler
	admin := h.AuthMiddleware(models.RoleAdmin)
	student := h.AuthMiddleware(models.RoleStudent)

	r := chi.NewRouter()
	r.Get("/api/health", h.Health)

	r.Post("/api/auth/student/register", h.Register)
	r.Post("/api/auth/student/login", h.Login(models.RoleStudent))
	r.Post("/api/auth/admin/login", h.Login(models.RoleAdmin))
	r.Post("/api/auth/logout", h.Logout)

	r.Get("/api/courses", h.PublicCourses)
	r.Get("/api/courses/{courseID}", h.GetCourse)
	r.Get("/api/pdf-proxy", h.PDFProxy)
	r.Head("/api/pdf-proxy", h.PDFProxy)
	r.Get("/files/*", h.ServeFile)
	r.Head("/files/*", h.ServeFile)

	r.With(student).Get("/api/student/courses", h.StudentCourses)
	r.With(student).Get("/api/student/profile", h.StudentProfile)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(admin)
		r.Get("/courses", h.AdminCourses)
		r.Post("/courses", h.CreateCourse)
		r.Put("/courses/{courseID}", h.UpdateCourse)
		r.Delete("/courses/{courseID}", h.DeleteCourse)
		r.Get("/courses/{courseID}/sections", h.ListSections)
		r.Post("/courses/{courseID}/sections", h.CreateSection)
		r.Get("/courses/{courseID}/students", h.CourseStudents)
		r.Put("/sections/{sectionID}", h.UpdateSection)
		r.Delete("/sections/{sectionID}", h.DeleteSection)
		r.Post("/sections/{sectionID}/documents", h.UploadDocument)
		r.Delete("/documents/{documentID}", h.DeleteDocument)
		r.Get("/students", h.ListStudents)
		r.Post("/enroll", h.Enroll)
		r.Delete("/enroll", h.Unenroll)
	})
	return r
}

// Start starts the server.
func (s *Server) Start() error {
	s.log.Info("server starting", "addr", s.Server.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}
