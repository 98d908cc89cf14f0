package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/api"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/crud"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/logger"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/media"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/router"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/session"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/store"
)

// App holds the wired client components for one CLI invocation.
type App struct {
	Settings Settings
	Log      *logger.Logger
	API      *api.Client
	Session  *session.Manager
	Store    *store.Store
	CRUD     *crud.Coordinator
	Router   *router.Router
	Media    *media.Resolver

	closers []func() error
}

// NewApp wires the components and restores any persisted session. Progress
// of mutations is reported on busy.
func NewApp(s Settings, busy io.Writer) (*App, error) {
	log, err := logger.New(s.LogMode, s.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	a := &App{Settings: s, Log: log}
	a.API = api.New(s.ServerURL,
		api.WithHTTPClient(&http.Client{Timeout: s.HTTPTimeout}),
		api.WithLogger(log),
	)
	a.Session = session.NewManager(a.API, session.NewFileTokenStore(s.StateFile), session.WithLogger(log))
	a.API.SetTokenSource(a.Session)

	cache, err := a.newCache()
	if err != nil {
		return nil, err
	}
	a.Store = store.New(a.API, store.WithCache(cache), store.WithLogger(log))
	a.Session.Subscribe(func(id *models.Identity) {
		if id == nil {
			a.Store.SetNamespace("")
			return
		}
		a.Store.SetNamespace(string(id.Role) + ":" + id.Subject)
	})

	a.CRUD = crud.New(a.API, a.Session, a.Store,
		crud.WithIndicator(&busyIndicator{w: busy}),
		crud.WithLogger(log),
	)
	a.Router = router.New(a.Store, router.WithLogger(log))
	a.Media = media.New(a.API,
		media.WithConfig(media.Config{PDFWait: s.Preview.PDFWait, MediaWait: s.Preview.MediaWait}),
		media.WithLogger(log),
	)

	a.Session.Restore()
	a.Session.Subscribe(a.Router.Listener(context.Background()))
	return a, nil
}

func (a *App) newCache() (store.Cache, error) {
	switch strings.ToLower(a.Settings.Cache.Backend) {
	case "", "memory":
		return store.NewMemoryCache(a.Settings.Cache.TTL), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: a.Settings.Cache.RedisAddr})
		rc := store.NewRedisCache(rdb, "sloka:", a.Settings.Cache.TTL)
		a.closers = append(a.closers, rc.Close)
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", a.Settings.Cache.Backend)
	}
}

// Identity returns the current identity, or nil when logged out.
func (a *App) Identity() *models.Identity {
	id, ok := a.Session.Current()
	if !ok {
		return nil
	}
	return &id
}

// EnterDashboard routes to the view for the current identity.
func (a *App) EnterDashboard(ctx context.Context) error {
	return a.Router.SetIdentity(ctx, a.Identity())
}

// Logout purges the viewer's cached scopes, then ends the session. The
// purge must run first: logging out moves the store to the anonymous
// namespace.
func (a *App) Logout(ctx context.Context) {
	a.Store.Purge(ctx)
	a.Session.Logout(ctx)
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.Log.Debug("close failed", "error", err)
		}
	}
	a.Log.Sync()
}

// busyIndicator prints a line while a mutation is in flight.
type busyIndicator struct {
	w io.Writer
}

func (b *busyIndicator) Begin(op string) {
	if b.w != nil {
		_, _ = fmt.Fprintf(b.w, "%s...\n", op)
	}
}

func (b *busyIndicator) End(op string) {
	if b.w != nil {
		_, _ = fmt.Fprintf(b.w, "%s done\n", op)
	}
}
