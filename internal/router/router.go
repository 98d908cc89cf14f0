package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/logger"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/store"
)

var (
	ErrNotAdminView  = errors.New("router: tabs are only available on the admin dashboard")
	ErrNotRosterView = errors.New("router: course rosters are only shown on the enrollments tab")
)

// Loader supplies view data. *store.Store satisfies it.
type Loader interface {
	PublicCourses(ctx context.Context) ([]models.Course, error)
	AdminCourses(ctx context.Context) ([]models.Course, error)
	StudentCourses(ctx context.Context) ([]models.Course, error)
	Students(ctx context.Context) ([]models.Student, error)
	Roster(ctx context.Context, courseID int64) ([]models.Student, error)
	Evict(ctx context.Context, scopes ...store.Scope)
}

// Router decides which view is shown for the current identity and loads its data.
type Router struct {
	loader Loader
	log    *logger.Logger

	mu        sync.Mutex
	entered   bool
	seq       uint64
	rosterSeq uint64
	view      View
	listeners []func(View)
}

type Option func(*Router)

func WithLogger(log *logger.Logger) Option {
	return func(r *Router) { r.log = log }
}

func New(loader Loader, opts ...Option) *Router {
	r := &Router{loader: loader, log: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers fn to receive every applied view.
func (r *Router) Subscribe(fn func(View)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// View returns a snapshot of the current view.
func (r *Router) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view.clone()
}

// Listener adapts the router to identity change notifications.
func (r *Router) Listener(ctx context.Context) func(*models.Identity) {
	return func(id *models.Identity) {
		if err := r.SetIdentity(ctx, id); err != nil {
			r.log.Warn("view load failed", "error", err)
		}
	}
}

// SetIdentity moves to the view for id. Repeating the current subject and
// role is a no-op.
func (r *Router) SetIdentity(ctx context.Context, id *models.Identity) error {
	next := stateFor(id)

	r.mu.Lock()
	if r.entered && r.view.State == next && sameViewer(r.view.Identity, id) {
		r.mu.Unlock()
		return nil
	}
	prev := r.view
	r.seq++
	seq := r.seq
	r.entered = true
	r.view = View{State: next}
	if id != nil {
		cp := *id
		r.view.Identity = &cp
	}
	if next == StateAdmin {
		r.view.Tab = TabCourses
	}
	tab := r.view.Tab
	r.mu.Unlock()

	if owned := prev.ownedScopes(); len(owned) > 0 {
		r.loader.Evict(ctx, owned...)
	}
	r.log.Debug("view transition", "from", prev.State, "to", next)
	return r.load(ctx, seq, next, tab)
}

// SelectTab switches the admin dashboard tab. Selecting the active tab does nothing.
func (r *Router) SelectTab(ctx context.Context, tab Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("router: unknown tab %q", tab)
	}

	r.mu.Lock()
	if r.view.State != StateAdmin {
		r.mu.Unlock()
		return ErrNotAdminView
	}
	if r.view.Tab == tab {
		r.mu.Unlock()
		return nil
	}
	var evict []store.Scope
	if r.view.Tab == TabEnrollments && r.view.RosterCourseID != 0 {
		evict = append(evict, store.RosterScope(r.view.RosterCourseID))
	}
	r.seq++
	seq := r.seq
	r.view = View{State: StateAdmin, Tab: tab, Identity: r.view.Identity}
	r.mu.Unlock()

	if len(evict) > 0 {
		r.loader.Evict(ctx, evict...)
	}
	return r.load(ctx, seq, StateAdmin, tab)
}

// SelectCourseRoster shows the students enrolled in courseID on the
// enrollments tab.
func (r *Router) SelectCourseRoster(ctx context.Context, courseID int64) error {
	r.mu.Lock()
	if r.view.State != StateAdmin {
		r.mu.Unlock()
		return ErrNotAdminView
	}
	if r.view.Tab != TabEnrollments {
		r.mu.Unlock()
		return ErrNotRosterView
	}
	prev := r.view.RosterCourseID
	r.rosterSeq++
	seq, rseq := r.seq, r.rosterSeq
	r.view.RosterCourseID = courseID
	r.view.Roster = nil
	r.mu.Unlock()

	if prev != 0 && prev != courseID {
		r.loader.Evict(ctx, store.RosterScope(prev))
	}

	roster, err := r.loader.Roster(ctx, courseID)
	return r.apply(seq, rseq, err, func(v *View) {
		v.Roster = roster
	})
}

// Refresh reloads the current view, typically after a mutation.
func (r *Router) Refresh(ctx context.Context) error {
	r.mu.Lock()
	if !r.entered {
		r.mu.Unlock()
		return nil
	}
	r.seq++
	seq := r.seq
	state, tab, rosterID := r.view.State, r.view.Tab, r.view.RosterCourseID
	r.rosterSeq++
	rseq := r.rosterSeq
	r.mu.Unlock()

	if err := r.load(ctx, seq, state, tab); err != nil {
		return err
	}
	if state == StateAdmin && tab == TabEnrollments && rosterID != 0 {
		roster, err := r.loader.Roster(ctx, rosterID)
		return r.apply(seq, rseq, err, func(v *View) { v.Roster = roster })
	}
	return nil
}

func (r *Router) load(ctx context.Context, seq uint64, state State, tab Tab) error {
	const rseq = 0

	switch state {
	case StateLoggedOut:
		courses, err := r.loader.PublicCourses(ctx)
		return r.apply(seq, rseq, err, func(v *View) { v.Courses = courses })

	case StateStudent:
		courses, err := r.loader.StudentCourses(ctx)
		return r.apply(seq, rseq, err, func(v *View) { v.Courses = courses })

	case StateAdmin:
		switch tab {
		case TabCourses:
			courses, err := r.loader.AdminCourses(ctx)
			return r.apply(seq, rseq, err, func(v *View) { v.Courses = courses })
		case TabStudents:
			students, err := r.loader.Students(ctx)
			return r.apply(seq, rseq, err, func(v *View) { v.Students = students })
		case TabEnrollments:
			var (
				courses  []models.Course
				students []models.Student
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				students, err = r.loader.Students(gctx)
				return err
			})
			g.Go(func() error {
				var err error
				courses, err = r.loader.AdminCourses(gctx)
				return err
			})
			err := g.Wait()
			return r.apply(seq, rseq, err, func(v *View) {
				v.Courses = courses
				v.Students = students
			})
		}
	}
	return nil
}

// apply commits a load result unless the view moved on since it started.
// A zero rseq skips the roster check.
func (r *Router) apply(seq, rseq uint64, err error, set func(*View)) error {
	r.mu.Lock()
	if r.seq != seq || (rseq != 0 && r.rosterSeq != rseq) {
		r.mu.Unlock()
		r.log.Debug("dropping stale view result", "seq", seq)
		return nil
	}
	if err == nil {
		set(&r.view)
	}
	r.view.Err = err
	r.view.fillPlaceholders()
	snapshot := r.view.clone()
	listeners := append([]func(View)(nil), r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return err
}

func stateFor(id *models.Identity) State {
	if id == nil {
		return StateLoggedOut
	}
	if id.Role == models.RoleAdmin {
		return StateAdmin
	}
	return StateStudent
}

func sameViewer(a, b *models.Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.SameAs(*b)
}
