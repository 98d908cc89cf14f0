package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/api"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/apperr"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/logger"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
)

// Source is the read side of the platform API.
type Source interface {
	PublicCourses(ctx context.Context) ([]models.Course, error)
	AdminCourses(ctx context.Context) ([]models.Course, error)
	StudentCourses(ctx context.Context) ([]models.Course, error)
	Course(ctx context.Context, id int64) (models.Course, error)
	Students(ctx context.Context) ([]models.Student, error)
	CourseStudents(ctx context.Context, courseID int64) ([]models.Student, error)
	Sections(ctx context.Context, courseID int64) ([]models.Section, error)
}

type idSet map[int64]struct{}

// Store is the client-side copy of server collections. Entries live until
// they are invalidated; concurrent loads of one scope share a single request.
type Store struct {
	src   Source
	cache Cache
	log   *logger.Logger
	group singleflight.Group

	mu        sync.Mutex
	namespace string
	gen       map[Scope]uint64

	// Ownership learned from loaded sections.
	sectionCourse map[int64]int64
	docSection    map[int64]int64

	// Enrollment, kept symmetric.
	courseStudents map[int64]idSet
	studentCourses map[int64]idSet
}

type Option func(*Store)

func WithLogger(log *logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithCache overrides the default in-memory cache.
func WithCache(c Cache) Option {
	return func(s *Store) { s.cache = c }
}

func New(src Source, opts ...Option) *Store {
	s := &Store{
		src:            src,
		cache:          NewMemoryCache(0),
		log:            logger.Nop(),
		namespace:      "anon",
		gen:            make(map[Scope]uint64),
		sectionCourse:  make(map[int64]int64),
		docSection:     make(map[int64]int64),
		courseStudents: make(map[int64]idSet),
		studentCourses: make(map[int64]idSet),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetNamespace partitions cached entries by viewer, so one account never
// reads another's views out of a shared cache.
func (s *Store) SetNamespace(ns string) {
	if ns == "" {
		ns = "anon"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns == s.namespace {
		return
	}
	s.namespace = ns
	s.resetIndexesLocked()
}

func (s *Store) key(scope Scope) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namespace + "|" + scope.String()
}

func (s *Store) generation(scope Scope) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen[scope]
}

// Cached reports whether scope currently has a cache entry.
func (s *Store) Cached(ctx context.Context, scope Scope) bool {
	_, ok, err := s.cache.Get(ctx, s.key(scope))
	return err == nil && ok
}

// load returns the cached value for scope or fetches it. A fetch that races
// an invalidation of the same scope is returned to its callers but not cached.
func load[T any](ctx context.Context, s *Store, op string, scope Scope, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	key := s.key(scope)

	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache read failed", "scope", scope.String(), "error", err)
	}
	if ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			return v, nil
		}
		s.log.Warn("dropping undecodable cache entry", "scope", scope.String())
	}

	gen := s.generation(scope)
	res, err, shared := s.group.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if s.generation(scope) != gen {
			s.log.Debug("discarding stale fetch", "scope", scope.String())
			return v, nil
		}
		data, err := json.Marshal(v)
		if err == nil {
			err = s.cache.Set(ctx, key, data)
		}
		if err != nil {
			s.log.Warn("cache write failed", "scope", scope.String(), "error", err)
		}
		return v, nil
	})
	if err != nil {
		return zero, classifyFetch(op, err)
	}
	if shared {
		s.log.Debug("coalesced fetch", "scope", scope.String())
	}
	return res.(T), nil
}

func classifyFetch(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, api.ErrNoToken) {
		return apperr.New(op, apperr.KindUnauthorized, err)
	}
	status := api.StatusOf(err)
	if status == 0 {
		return apperr.New(op, apperr.KindServerUnavailable, err)
	}
	return &apperr.Error{
		Op:     op,
		Kind:   apperr.FetchKind(status),
		Status: status,
		Detail: api.DetailOf(err),
		Err:    err,
	}
}

func (s *Store) PublicCourses(ctx context.Context) ([]models.Course, error) {
	return load(ctx, s, "store.PublicCourses", PublicCoursesScope, s.src.PublicCourses)
}

func (s *Store) AdminCourses(ctx context.Context) ([]models.Course, error) {
	courses, err := load(ctx, s, "store.AdminCourses", AdminCoursesScope, s.src.AdminCourses)
	if err != nil {
		return nil, err
	}
	for _, c := range courses {
		if c.EnrolledStudentIDs != nil {
			s.indexRoster(c.ID, c.EnrolledStudentIDs)
		}
	}
	return courses, nil
}

func (s *Store) StudentCourses(ctx context.Context) ([]models.Course, error) {
	return load(ctx, s, "store.StudentCourses", StudentCoursesScope, s.src.StudentCourses)
}

func (s *Store) Course(ctx context.Context, id int64) (models.Course, error) {
	c, err := load(ctx, s, "store.Course", CourseScope(id), func(ctx context.Context) (models.Course, error) {
		return s.src.Course(ctx, id)
	})
	if err != nil {
		return models.Course{}, err
	}
	if c.Sections != nil {
		s.indexSections(id, c.Sections)
	}
	return c, nil
}

// Students is every registered student.
func (s *Store) Students(ctx context.Context) ([]models.Student, error) {
	students, err := load(ctx, s, "store.Students", AllStudentsScope, s.src.Students)
	if err != nil {
		return nil, err
	}
	for _, st := range students {
		if st.EnrolledCourseIDs != nil {
			s.indexStudent(st.ID, st.EnrolledCourseIDs)
		}
	}
	return students, nil
}

// Roster is the students enrolled in one course.
func (s *Store) Roster(ctx context.Context, courseID int64) ([]models.Student, error) {
	roster, err := load(ctx, s, "store.Roster", RosterScope(courseID), func(ctx context.Context) ([]models.Student, error) {
		return s.src.CourseStudents(ctx, courseID)
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(roster))
	for i, st := range roster {
		ids[i] = st.ID
	}
	s.indexRoster(courseID, ids)
	return roster, nil
}

func (s *Store) Sections(ctx context.Context, courseID int64) ([]models.Section, error) {
	sections, err := load(ctx, s, "store.Sections", SectionsScope(courseID), func(ctx context.Context) ([]models.Section, error) {
		return s.src.Sections(ctx, courseID)
	})
	if err != nil {
		return nil, err
	}
	s.indexSections(courseID, sections)
	return sections, nil
}

// Section finds one section of a course.
func (s *Store) Section(ctx context.Context, courseID, sectionID int64) (models.Section, error) {
	sections, err := s.Sections(ctx, courseID)
	if err != nil {
		return models.Section{}, err
	}
	for _, sec := range sections {
		if sec.ID == sectionID {
			return sec, nil
		}
	}
	return models.Section{}, apperr.Newf("store.Section", apperr.KindNotFound, "section %d not found in course %d", sectionID, courseID)
}

// Document finds one document among a course's sections.
func (s *Store) Document(ctx context.Context, courseID, docID int64) (models.Document, error) {
	sections, err := s.Sections(ctx, courseID)
	if err != nil {
		return models.Document{}, err
	}
	for _, sec := range sections {
		for _, d := range sec.Documents {
			if d.ID == docID {
				return d, nil
			}
		}
	}
	return models.Document{}, apperr.Newf("store.Document", apperr.KindNotFound, "document %d not found in course %d", docID, courseID)
}

// IsEnrolled answers from the course roster.
func (s *Store) IsEnrolled(ctx context.Context, studentID, courseID int64) (bool, error) {
	roster, err := s.Roster(ctx, courseID)
	if err != nil {
		return false, err
	}
	for _, st := range roster {
		if st.ID == studentID {
			return true, nil
		}
	}
	return false, nil
}

// EnrolledCourses returns the course IDs known to contain studentID.
func (s *Store) EnrolledCourses(studentID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.studentCourses[studentID])
}

// EnrolledStudents returns the student IDs known to be in courseID.
func (s *Store) EnrolledStudents(courseID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.courseStudents[courseID])
}

// SectionOwner reports the course a loaded section belongs to.
func (s *Store) SectionOwner(sectionID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sectionCourse[sectionID]
	return c, ok
}

// DocumentOwner reports the section a loaded document belongs to.
func (s *Store) DocumentOwner(docID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.docSection[docID]
	return sec, ok
}

// Invalidate drops the given scopes. Fetches already in flight for them will
// not repopulate the cache.
func (s *Store) Invalidate(ctx context.Context, scopes ...Scope) {
	if len(scopes) == 0 {
		return
	}
	keys := make([]string, 0, len(scopes))

	s.mu.Lock()
	for _, scope := range scopes {
		s.gen[scope]++
		keys = append(keys, s.namespace+"|"+scope.String())
		s.forgetLocked(scope)
	}
	s.mu.Unlock()

	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Warn("cache delete failed", "error", err)
	}
	s.log.Debug("invalidated", "scopes", len(scopes))
}

// InvalidateCollection drops every scope of a collection, including ones
// this process never loaded.
func (s *Store) InvalidateCollection(ctx context.Context, coll Collection) {
	s.mu.Lock()
	ns := s.namespace
	for scope := range s.gen {
		if scope.Collection == coll {
			s.gen[scope]++
		}
	}
	switch coll {
	case CollSections:
		for sec, c := range s.sectionCourse {
			s.gen[SectionsScope(c)]++
			delete(s.sectionCourse, sec)
		}
		s.docSection = make(map[int64]int64)
	}
	s.mu.Unlock()

	if err := s.cache.DeletePrefix(ctx, ns+"|"+string(coll)+"/"); err != nil {
		s.log.Warn("cache delete failed", "collection", coll, "error", err)
	}
}

// InvalidateCourseTree drops a course and everything nested under it or
// derived from it.
func (s *Store) InvalidateCourseTree(ctx context.Context, courseID int64) {
	scopes := []Scope{
		CourseScope(courseID),
		SectionsScope(courseID),
		RosterScope(courseID),
		AdminCoursesScope,
		PublicCoursesScope,
		StudentCoursesScope,
		AllStudentsScope,
	}
	for _, st := range s.EnrolledStudents(courseID) {
		scopes = append(scopes, StudentScope(st))
	}
	s.Invalidate(ctx, scopes...)
}

// Evict releases entries a view no longer shows.
func (s *Store) Evict(ctx context.Context, scopes ...Scope) {
	s.Invalidate(ctx, scopes...)
}

// Purge drops everything cached for the current namespace.
func (s *Store) Purge(ctx context.Context) {
	s.mu.Lock()
	ns := s.namespace
	for scope := range s.gen {
		s.gen[scope]++
	}
	s.resetIndexesLocked()
	s.mu.Unlock()

	if err := s.cache.DeletePrefix(ctx, ns+"|"); err != nil {
		s.log.Warn("cache purge failed", "error", err)
	}
}

func (s *Store) indexSections(courseID int64, sections []models.Section) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropSectionsLocked(courseID)
	for _, sec := range sections {
		s.sectionCourse[sec.ID] = courseID
		for _, d := range sec.Documents {
			s.docSection[d.ID] = sec.ID
		}
	}
}

func (s *Store) indexRoster(courseID int64, studentIDs []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropCourseLocked(courseID)
	set := make(idSet, len(studentIDs))
	for _, st := range studentIDs {
		set[st] = struct{}{}
		if s.studentCourses[st] == nil {
			s.studentCourses[st] = make(idSet)
		}
		s.studentCourses[st][courseID] = struct{}{}
	}
	s.courseStudents[courseID] = set
}

func (s *Store) indexStudent(studentID int64, courseIDs []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.studentCourses[studentID] {
		delete(s.courseStudents[c], studentID)
	}
	set := make(idSet, len(courseIDs))
	for _, c := range courseIDs {
		set[c] = struct{}{}
		if s.courseStudents[c] == nil {
			s.courseStudents[c] = make(idSet)
		}
		s.courseStudents[c][studentID] = struct{}{}
	}
	s.studentCourses[studentID] = set
}

func (s *Store) forgetLocked(scope Scope) {
	switch scope.Collection {
	case CollSections:
		if id, ok := parseID(scope.Key); ok {
			s.dropSectionsLocked(id)
		}
	case CollStudents:
		if id, ok := parseID(scope.Key); ok {
			s.dropCourseLocked(id)
		}
	case CollStudent:
		if id, ok := parseID(scope.Key); ok {
			s.dropStudentLocked(id)
		}
	}
}

func (s *Store) dropSectionsLocked(courseID int64) {
	for sec, c := range s.sectionCourse {
		if c != courseID {
			continue
		}
		delete(s.sectionCourse, sec)
		for d, owner := range s.docSection {
			if owner == sec {
				delete(s.docSection, d)
			}
		}
	}
}

func (s *Store) dropCourseLocked(courseID int64) {
	for st := range s.courseStudents[courseID] {
		delete(s.studentCourses[st], courseID)
		if len(s.studentCourses[st]) == 0 {
			delete(s.studentCourses, st)
		}
	}
	delete(s.courseStudents, courseID)
}

func (s *Store) dropStudentLocked(studentID int64) {
	for c := range s.studentCourses[studentID] {
		delete(s.courseStudents[c], studentID)
	}
	delete(s.studentCourses, studentID)
}

func (s *Store) resetIndexesLocked() {
	s.sectionCourse = make(map[int64]int64)
	s.docSection = make(map[int64]int64)
	s.courseStudents = make(map[int64]idSet)
	s.studentCourses = make(map[int64]idSet)
}

func sortedIDs(set idSet) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
