package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/apperr"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/logger"
)

// Fetcher is the file access the resolver needs. *api.Client satisfies it.
type Fetcher interface {
	Head(ctx context.Context, fileURL string) error
	Fetch(ctx context.Context, fileURL string, head, limit int64) (string, []byte, error)
	Download(ctx context.Context, fileURL string, w io.Writer) (int64, error)
	PDFProxyURL(fileURL string) string
	ResolveURL(ref string) string
}

// State is where a preview ended up.
type State string

const (
	StateProbing  State = "probing"
	StateRendered State = "rendered"
	// StateFallback means the file is reachable but could not be shown inline.
	StateFallback State = "fallback"
	// StateFailed means the file could not be reached at all.
	StateFailed State = "failed"
)

const (
	MsgUnreachable = "Failed to load for preview. You can download it instead."
	MsgUnsupported = "This file type cannot be previewed. You can download it instead."
)

// Request names the file to preview.
type Request struct {
	URL      string
	Title    string
	Declared string
}

// Inline holds what a successful render produced. Which fields are set
// depends on the Kind.
type Inline struct {
	Format    string
	Width     int
	Height    int
	MIME      string
	Text      string
	Truncated bool
	ViewURL   string
	Bytes     int
}

// Fallback is always offered, even when the inline render succeeded.
type Fallback struct {
	Message     string
	OpenURL     string
	DownloadURL string
}

type Preview struct {
	Kind     Kind
	State    State
	Title    string
	URL      string
	Inline   Inline
	Fallback Fallback
	Err      error
}

type Config struct {
	PDFWait       time.Duration
	MediaWait     time.Duration
	MaxImageBytes int64
	MaxTextBytes  int64
	MediaHead     int64
}

func DefaultConfig() Config {
	return Config{
		PDFWait:       4 * time.Second,
		MediaWait:     3 * time.Second,
		MaxImageBytes: 10 << 20,
		MaxTextBytes:  1 << 20,
		MediaHead:     4096,
	}
}

// Resolver turns file references into previews.
type Resolver struct {
	files Fetcher
	cfg   Config
	log   *logger.Logger
}

type Option func(*Resolver)

func WithConfig(cfg Config) Option {
	return func(r *Resolver) {
		def := DefaultConfig()
		if cfg.PDFWait <= 0 {
			cfg.PDFWait = def.PDFWait
		}
		if cfg.MediaWait <= 0 {
			cfg.MediaWait = def.MediaWait
		}
		if cfg.MaxImageBytes <= 0 {
			cfg.MaxImageBytes = def.MaxImageBytes
		}
		if cfg.MaxTextBytes <= 0 {
			cfg.MaxTextBytes = def.MaxTextBytes
		}
		if cfg.MediaHead <= 0 {
			cfg.MediaHead = def.MediaHead
		}
		r.cfg = cfg
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

func New(files Fetcher, opts ...Option) *Resolver {
	r := &Resolver{files: files, cfg: DefaultConfig(), log: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve probes the file, picks a strategy and renders it. The result is
// never empty: a failed render still carries a fallback.
func (r *Resolver) Resolve(ctx context.Context, req Request) Preview {
	const op = "media.Resolve"
	abs := r.files.ResolveURL(req.URL)
	p := Preview{
		State: StateProbing,
		Title: req.Title,
		URL:   abs,
		Fallback: Fallback{
			OpenURL:     abs,
			DownloadURL: abs,
		},
	}
	if p.Title == "" {
		p.Title = path.Base(strings.TrimSuffix(req.URL, "/"))
	}

	// 1. Probe
	if err := r.files.Head(ctx, req.URL); err != nil {
		r.log.Debug("preview probe failed", "url", abs, "error", err)
		p.Kind = Classify(req.Declared, req.URL)
		p.State = StateFailed
		p.Err = apperr.New(op, apperr.KindUnreachable, err)
		p.Fallback.Message = MsgUnreachable
		return p
	}

	// 2. Classify
	p.Kind = Classify(req.Declared, req.URL)
	s := strategyFor(p.Kind)

	// 3. Render
	if err := s.render(ctx, r, &p); err != nil {
		r.log.Debug("preview fell back", "url", abs, "kind", p.Kind, "error", err)
		p.State = StateFallback
		p.Err = err
		p.Inline = Inline{}
	} else {
		p.State = StateRendered
	}
	p.Fallback.Message = s.fallback()
	if p.Kind == KindPDF && p.State == StateRendered {
		p.Fallback.OpenURL = p.Inline.ViewURL
	}
	return p
}

// Download saves the file into dir and returns the written path. An empty
// name uses the last element of the URL path.
func (r *Resolver) Download(ctx context.Context, fileURL, dir, name string) (string, error) {
	if name == "" {
		name = path.Base(strings.TrimSuffix(stripQuery(fileURL), "/"))
	}
	name = filepath.Base(filepath.Clean(name))
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("cannot derive a file name from %q", fileURL)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	dest := filepath.Join(dir, name)
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	n, err := r.files.Download(ctx, fileURL, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", apperr.New("media.Download", apperr.KindUnreachable, err)
	}
	r.log.Info("downloaded file", "path", dest, "bytes", n)
	return dest, nil
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// timedOut reports whether err came from the strategy's own wait bound
// rather than the caller's context.
func timedOut(parent context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}
