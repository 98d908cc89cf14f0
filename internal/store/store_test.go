package store

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/api"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/apperr"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
)

type fakeSource struct {
	mu       sync.Mutex
	courses  []models.Course
	sections map[int64][]models.Section
	rosters  map[int64][]models.Student
	students []models.Student
	err      error

	// gate, when set, blocks every fetch until closed.
	gate  chan struct{}
	calls atomic.Int32
}

func (f *fakeSource) wait() error {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.err
}

func (f *fakeSource) PublicCourses(context.Context) ([]models.Course, error) {
	if err := f.wait(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Course(nil), f.courses...), nil
}

func (f *fakeSource) AdminCourses(ctx context.Context) ([]models.Course, error) {
	return f.PublicCourses(ctx)
}

func (f *fakeSource) StudentCourses(ctx context.Context) ([]models.Course, error) {
	return f.PublicCourses(ctx)
}

func (f *fakeSource) Course(_ context.Context, id int64) (models.Course, error) {
	if err := f.wait(); err != nil {
		return models.Course{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.courses {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Course{}, &api.StatusError{Method: "GET", Path: "/api/courses", Status: http.StatusNotFound, Detail: "Course not found"}
}

func (f *fakeSource) Students(context.Context) ([]models.Student, error) {
	if err := f.wait(); err != nil {
		return nil, err
	}
	return f.students, nil
}

func (f *fakeSource) CourseStudents(_ context.Context, courseID int64) ([]models.Student, error) {
	if err := f.wait(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Student(nil), f.rosters[courseID]...), nil
}

func (f *fakeSource) Sections(_ context.Context, courseID int64) ([]models.Section, error) {
	if err := f.wait(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Section(nil), f.sections[courseID]...), nil
}

func sampleSource() *fakeSource {
	return &fakeSource{
		courses: []models.Course{{ID: 1, Title: "Sanskrit I", IsActive: true}},
		sections: map[int64][]models.Section{
			1: {
				{ID: 10, CourseID: 1, Title: "Intro", Documents: []models.Document{
					{ID: 100, SectionID: 10, Title: "Notes", FileURL: "/files/a.pdf", FileType: models.FileTypeDocument},
					{ID: 101, SectionID: 10, Title: "Chant", FileURL: "/files/b.mp3", FileType: models.FileTypeAudio},
				}},
				{ID: 11, CourseID: 1, Title: "Grammar", Documents: []models.Document{
					{ID: 102, SectionID: 11, Title: "Sutras", FileURL: "/files/c.txt", FileType: models.FileTypeText},
				}},
			},
		},
		rosters: map[int64][]models.Student{
			1: {{ID: 5, Email: "s@b.com"}, {ID: 6, Email: "t@b.com"}},
		},
	}
}

func TestLoad_CachesUntilInvalidated(t *testing.T) {
	src := sampleSource()
	s := New(src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		courses, err := s.PublicCourses(ctx)
		if err != nil {
			t.Fatalf("PublicCourses failed: %v", err)
		}
		if len(courses) != 1 {
			t.Fatalf("expected 1 course, got %d", len(courses))
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}

	s.Invalidate(ctx, PublicCoursesScope)
	if s.Cached(ctx, PublicCoursesScope) {
		t.Error("expected scope to be dropped")
	}
	if _, err := s.PublicCourses(ctx); err != nil {
		t.Fatal(err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("expected refetch after invalidation, got %d fetches", got)
	}
}

func TestLoad_CoalescesConcurrentFetches(t *testing.T) {
	src := sampleSource()
	src.gate = make(chan struct{})
	s := New(src)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Sections(context.Background(), 1)
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Sections failed: %v", err)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("expected a single network fetch, got %d", got)
	}
}

func TestLoad_StaleFetchNotCached(t *testing.T) {
	src := sampleSource()
	src.gate = make(chan struct{})
	s := New(src)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.AdminCourses(ctx)
		done <- err
	}()
	for src.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	// A mutation lands while the read is in flight.
	s.Invalidate(ctx, AdminCoursesScope)
	close(src.gate)
	if err := <-done; err != nil {
		t.Fatalf("AdminCourses failed: %v", err)
	}
	if s.Cached(ctx, AdminCoursesScope) {
		t.Error("fetch started before invalidation must not be cached")
	}
}

func TestFetchErrors(t *testing.T) {
	ctx := context.Background()

	s := New(sampleSource())
	if _, err := s.Course(ctx, 99); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}

	src := sampleSource()
	src.err = &api.StatusError{Status: http.StatusUnauthorized}
	if _, err := New(src).Students(ctx); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected Unauthorized, got %v", err)
	}

	src = sampleSource()
	src.err = errors.New("connection refused")
	if _, err := New(src).PublicCourses(ctx); !errors.Is(err, apperr.ErrServerUnavailable) {
		t.Errorf("expected ServerUnavailable, got %v", err)
	}

	src = sampleSource()
	src.err = api.ErrNoToken
	if _, err := New(src).StudentCourses(ctx); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected Unauthorized without token, got %v", err)
	}
}

func TestFetchError_NotCached(t *testing.T) {
	src := sampleSource()
	src.err = &api.StatusError{Status: http.StatusInternalServerError}
	s := New(src)
	ctx := context.Background()

	if _, err := s.PublicCourses(ctx); err == nil {
		t.Fatal("expected error")
	}
	src.err = nil
	if _, err := s.PublicCourses(ctx); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestDocumentLookup(t *testing.T) {
	src := sampleSource()
	s := New(src)
	ctx := context.Background()

	doc, err := s.Document(ctx, 1, 101)
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if doc.Title != "Chant" {
		t.Errorf("unexpected document %+v", doc)
	}
	if sec, ok := s.DocumentOwner(101); !ok || sec != 10 {
		t.Errorf("expected doc 101 owned by section 10, got %d %v", sec, ok)
	}

	// The section is deleted server-side, then invalidated.
	src.mu.Lock()
	src.sections[1] = src.sections[1][1:]
	src.mu.Unlock()
	s.Invalidate(ctx, SectionsScope(1))

	if _, err := s.Document(ctx, 1, 101); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected NotFound after section delete, got %v", err)
	}
	if _, err := s.Section(ctx, 1, 10); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected section NotFound, got %v", err)
	}
}

func TestInvalidateCourseTree(t *testing.T) {
	src := sampleSource()
	s := New(src)
	ctx := context.Background()

	if _, err := s.Course(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Sections(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Roster(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AdminCourses(ctx); err != nil {
		t.Fatal(err)
	}

	s.InvalidateCourseTree(ctx, 1)

	for _, scope := range []Scope{CourseScope(1), SectionsScope(1), RosterScope(1), AdminCoursesScope} {
		if s.Cached(ctx, scope) {
			t.Errorf("expected %s to be dropped", scope)
		}
	}
	for _, sec := range []int64{10, 11} {
		if _, ok := s.SectionOwner(sec); ok {
			t.Errorf("section %d still indexed", sec)
		}
	}
	for _, d := range []int64{100, 101, 102} {
		if _, ok := s.DocumentOwner(d); ok {
			t.Errorf("document %d still indexed", d)
		}
	}
	if got := s.EnrolledCourses(5); len(got) != 0 {
		t.Errorf("expected student 5 to have no known courses, got %v", got)
	}
}

func TestInvalidateCollection(t *testing.T) {
	src := sampleSource()
	src.sections[2] = []models.Section{{ID: 20, CourseID: 2}}
	s := New(src)
	ctx := context.Background()

	_, _ = s.Sections(ctx, 1)
	_, _ = s.Sections(ctx, 2)
	_, _ = s.PublicCourses(ctx)

	s.InvalidateCollection(ctx, CollSections)

	if s.Cached(ctx, SectionsScope(1)) || s.Cached(ctx, SectionsScope(2)) {
		t.Error("expected all section scopes dropped")
	}
	if !s.Cached(ctx, PublicCoursesScope) {
		t.Error("unrelated scope should survive")
	}
	if _, ok := s.SectionOwner(20); ok {
		t.Error("section index should be empty")
	}
}

func TestEnrollmentIndexSymmetric(t *testing.T) {
	src := sampleSource()
	src.rosters[2] = []models.Student{{ID: 5}}
	s := New(src)
	ctx := context.Background()

	if _, err := s.Roster(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Roster(ctx, 2); err != nil {
		t.Fatal(err)
	}

	if got := s.EnrolledCourses(5); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected student 5 in [1 2], got %v", got)
	}
	if got := s.EnrolledStudents(1); len(got) != 2 {
		t.Errorf("expected 2 students in course 1, got %v", got)
	}

	ok, err := s.IsEnrolled(ctx, 6, 1)
	if err != nil || !ok {
		t.Errorf("expected student 6 enrolled in course 1, got %v %v", ok, err)
	}

	// Student 6 is unenrolled server-side.
	src.mu.Lock()
	src.rosters[1] = src.rosters[1][:1]
	src.mu.Unlock()
	s.Invalidate(ctx, RosterScope(1))

	if got := s.EnrolledCourses(6); len(got) != 0 {
		t.Errorf("expected no courses for 6 after invalidation, got %v", got)
	}
	ok, err = s.IsEnrolled(ctx, 6, 1)
	if err != nil || ok {
		t.Errorf("expected student 6 no longer enrolled, got %v %v", ok, err)
	}
	for _, c := range s.EnrolledCourses(5) {
		found := false
		for _, st := range s.EnrolledStudents(c) {
			if st == 5 {
				found = true
			}
		}
		if !found {
			t.Errorf("index asymmetric for student 5 course %d", c)
		}
	}
}

func TestInvalidateStudentScope(t *testing.T) {
	src := sampleSource()
	src.rosters[2] = []models.Student{{ID: 5}}
	s := New(src)
	ctx := context.Background()

	for _, c := range []int64{1, 2} {
		if _, err := s.Roster(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	s.Invalidate(ctx, StudentScope(5))

	if got := s.EnrolledCourses(5); len(got) != 0 {
		t.Errorf("expected student 5 forgotten, got %v", got)
	}
	for _, c := range []int64{1, 2} {
		for _, st := range s.EnrolledStudents(c) {
			if st == 5 {
				t.Errorf("course %d still lists student 5", c)
			}
		}
	}
	if got := s.EnrolledStudents(1); len(got) != 1 || got[0] != 6 {
		t.Errorf("other students must stay indexed, got %v", got)
	}
}

func TestNamespaceIsolation(t *testing.T) {
	src := sampleSource()
	cache := NewMemoryCache(0)
	s := New(src, WithCache(cache))
	ctx := context.Background()

	s.SetNamespace("admin@x.com")
	_, _ = s.AdminCourses(ctx)
	s.SetNamespace("s@b.com")
	if s.Cached(ctx, AdminCoursesScope) {
		t.Error("another viewer's entries must not be visible")
	}
	s.SetNamespace("admin@x.com")
	if !s.Cached(ctx, AdminCoursesScope) {
		t.Error("expected entries to survive a namespace switch")
	}

	s.Purge(ctx)
	if len(cache.Keys()) != 0 {
		t.Errorf("expected purge to empty the cache, got %v", cache.Keys())
	}
}
