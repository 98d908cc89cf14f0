package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// Account is a login for either role.
type Account struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"password_hash"`
	Role         models.Role `json:"role"`
	CreatedAt    time.Time   `json:"created_at"`
	IsActive     bool        `json:"is_active"`
}

type storedDocument struct {
	models.Document
	BlobKey string `json:"blob_key"`
}

type snapshot struct {
	NextID      int64                     `json:"next_id"`
	Accounts    map[string]*Account       `json:"accounts"`
	Courses     map[int64]*models.Course  `json:"courses"`
	Sections    map[int64]*models.Section `json:"sections"`
	Documents   map[int64]*storedDocument `json:"documents"`
	Enrollments []models.Enrollment       `json:"enrollments"`
}

// Storage is the dev server's database: in memory, persisted to one JSON file.
type Storage struct {
	mu        sync.RWMutex
	BaseDir   string
	BlobStore BlobStore
	data      snapshot
	revoked   map[string]time.Time // token -> expiry
	now       func() time.Time
}

// NewStorage loads BaseDir/db.json if it exists.
func NewStorage(baseDir string, blobStore BlobStore) (*Storage, error) {
	s := &Storage{
		BaseDir:   baseDir,
		BlobStore: blobStore,
		data: snapshot{
			Accounts:  make(map[string]*Account),
			Courses:   make(map[int64]*models.Course),
			Sections:  make(map[int64]*models.Section),
			Documents: make(map[int64]*storedDocument),
		},
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) dbPath() string {
	return filepath.Join(s.BaseDir, "db.json")
}

func (s *Storage) load() error {
	if err := os.MkdirAll(s.BaseDir, 0755); err != nil {
		return err
	}
	data, err := os.ReadFile(s.dbPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &s.data); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	return nil
}

// saveLocked writes the snapshot. Caller must hold the write lock.
func (s *Storage) saveLocked() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.dbPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.dbPath())
}

func (s *Storage) nextIDLocked() int64 {
	s.data.NextID++
	return s.data.NextID
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount adds a login. The email must be unused.
func (s *Storage) CreateAccount(email, passwordHash string, role models.Role) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normEmail(email)
	if _, ok := s.data.Accounts[key]; ok {
		return Account{}, ErrExists
	}
	a := &Account{
		ID:           s.nextIDLocked(),
		Email:        key,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    s.now().UTC(),
		IsActive:     true,
	}
	s.data.Accounts[key] = a
	return *a, s.saveLocked()
}

func (s *Storage) Account(email string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data.Accounts[normEmail(email)]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

// RevokeToken remembers a logged-out token until it would have expired.
func (s *Storage) RevokeToken(token string, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for t, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, t)
		}
	}
	s.revoked[token] = expires
}

func (s *Storage) IsRevoked(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[token]
	return ok
}

func (s *Storage) studentLocked(a *Account) models.Student {
	st := models.Student{
		ID:                a.ID,
		Email:             a.Email,
		CreatedAt:         a.CreatedAt,
		IsActive:          a.IsActive,
		EnrolledCourseIDs: []int64{},
	}
	for _, e := range s.data.Enrollments {
		if e.StudentID == a.ID {
			st.EnrolledCourseIDs = append(st.EnrolledCourseIDs, e.CourseID)
		}
	}
	return st
}

// Students lists every student account, oldest first.
func (s *Storage) Students() []models.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Student{}
	for _, a := range s.data.Accounts {
		if a.Role == models.RoleStudent {
			out = append(out, s.studentLocked(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StudentByEmail returns the student profile for a login.
func (s *Storage) StudentByEmail(email string) (models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data.Accounts[normEmail(email)]
	if !ok || a.Role != models.RoleStudent {
		return models.Student{}, ErrNotFound
	}
	return s.studentLocked(a), nil
}

func (s *Storage) studentByIDLocked(id int64) (*Account, bool) {
	for _, a := range s.data.Accounts {
		if a.ID == id && a.Role == models.RoleStudent {
			return a, true
		}
	}
	return nil, false
}

// courseLocked assembles a course with its ordered sections and documents.
func (s *Storage) courseLocked(c *models.Course) models.Course {
	out := *c
	out.Sections = s.sectionsLocked(c.ID)
	out.EnrolledStudentIDs = []int64{}
	for _, e := range s.data.Enrollments {
		if e.CourseID == c.ID {
			out.EnrolledStudentIDs = append(out.EnrolledStudentIDs, e.StudentID)
		}
	}
	return out
}

func (s *Storage) sectionsLocked(courseID int64) []models.Section {
	out := []models.Section{}
	for _, sec := range s.data.Sections {
		if sec.CourseID != courseID {
			continue
		}
		cp := *sec
		cp.Documents = []models.Document{}
		for _, d := range s.data.Documents {
			if d.SectionID == sec.ID {
				cp.Documents = append(cp.Documents, d.Document)
			}
		}
		sort.Slice(cp.Documents, func(i, j int) bool {
			if cp.Documents[i].OrderIndex != cp.Documents[j].OrderIndex {
				return cp.Documents[i].OrderIndex < cp.Documents[j].OrderIndex
			}
			return cp.Documents[i].ID < cp.Documents[j].ID
		})
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Courses lists courses, optionally only the active ones.
func (s *Storage) Courses(activeOnly bool) []models.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Course{}
	for _, c := range s.data.Courses {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, s.courseLocked(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Storage) Course(id int64) (models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data.Courses[id]
	if !ok {
		return models.Course{}, ErrNotFound
	}
	return s.courseLocked(c), nil
}

// CoursesForStudent lists the active courses a student is enrolled in.
func (s *Storage) CoursesForStudent(studentID int64) []models.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Course{}
	for _, e := range s.data.Enrollments {
		if e.StudentID != studentID {
			continue
		}
		if c, ok := s.data.Courses[e.CourseID]; ok && c.IsActive {
			out = append(out, s.courseLocked(c).StudentView())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Storage) CreateCourse(in models.CourseInput) (models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Course{
		ID:          s.nextIDLocked(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Content:     in.Content,
		Instructor:  in.Instructor,
		Duration:    in.Duration,
		CreatedAt:   s.now().UTC(),
		IsActive:    true,
	}
	s.data.Courses[c.ID] = c
	return s.courseLocked(c), s.saveLocked()
}

func (s *Storage) UpdateCourse(id int64, in models.CourseInput) (models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.Courses[id]
	if !ok {
		return models.Course{}, ErrNotFound
	}
	c.Title = strings.TrimSpace(in.Title)
	c.Description = in.Description
	c.Content = in.Content
	c.Instructor = in.Instructor
	c.Duration = in.Duration
	return s.courseLocked(c), s.saveLocked()
}

// DeleteCourse removes a course with its sections, documents and enrollments.
// It returns the blob keys that are no longer referenced.
func (s *Storage) DeleteCourse(id int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Courses[id]; !ok {
		return nil, ErrNotFound
	}
	var keys []string
	for sid, sec := range s.data.Sections {
		if sec.CourseID == id {
			keys = append(keys, s.deleteSectionLocked(sid)...)
		}
	}
	delete(s.data.Courses, id)
	kept := s.data.Enrollments[:0]
	for _, e := range s.data.Enrollments {
		if e.CourseID != id {
			kept = append(kept, e)
		}
	}
	s.data.Enrollments = kept
	return keys, s.saveLocked()
}

func (s *Storage) Sections(courseID int64) ([]models.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.data.Courses[courseID]; !ok {
		return nil, ErrNotFound
	}
	return s.sectionsLocked(courseID), nil
}

func (s *Storage) CreateSection(courseID int64, in models.SectionInput) (models.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Courses[courseID]; !ok {
		return models.Section{}, ErrNotFound
	}
	sec := &models.Section{
		ID:          s.nextIDLocked(),
		CourseID:    courseID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		OrderIndex:  in.OrderIndex,
		CreatedAt:   s.now().UTC(),
		Documents:   []models.Document{},
	}
	s.data.Sections[sec.ID] = sec
	return *sec, s.saveLocked()
}

func (s *Storage) UpdateSection(id int64, in models.SectionInput) (models.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.data.Sections[id]
	if !ok {
		return models.Section{}, ErrNotFound
	}
	sec.Title = strings.TrimSpace(in.Title)
	sec.Description = in.Description
	sec.OrderIndex = in.OrderIndex
	return *sec, s.saveLocked()
}

// DeleteSection removes a section and its documents, returning their blob keys.
func (s *Storage) DeleteSection(id int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Sections[id]; !ok {
		return nil, ErrNotFound
	}
	keys := s.deleteSectionLocked(id)
	return keys, s.saveLocked()
}

func (s *Storage) deleteSectionLocked(id int64) []string {
	var keys []string
	for did, d := range s.data.Documents {
		if d.SectionID == id {
			keys = append(keys, d.BlobKey)
			delete(s.data.Documents, did)
		}
	}
	delete(s.data.Sections, id)
	return keys
}

// AddDocument records a document whose content is already in the blob store.
func (s *Storage) AddDocument(doc models.Document, blobKey string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Sections[doc.SectionID]; !ok {
		return models.Document{}, ErrNotFound
	}
	doc.ID = s.nextIDLocked()
	doc.CreatedAt = s.now().UTC()
	s.data.Documents[doc.ID] = &storedDocument{Document: doc, BlobKey: blobKey}
	return doc, s.saveLocked()
}

// SectionExists reports whether uploads can target id.
func (s *Storage) SectionExists(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data.Sections[id]
	return ok
}

// DeleteDocument removes a document and returns its blob key.
func (s *Storage) DeleteDocument(id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data.Documents[id]
	if !ok {
		return "", ErrNotFound
	}
	delete(s.data.Documents, id)
	return d.BlobKey, s.saveLocked()
}

// Enroll links a student to a course. Enrolling twice is a no-op.
func (s *Storage) Enroll(studentID, courseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.studentByIDLocked(studentID); !ok {
		return fmt.Errorf("student %d: %w", studentID, ErrNotFound)
	}
	if _, ok := s.data.Courses[courseID]; !ok {
		return fmt.Errorf("course %d: %w", courseID, ErrNotFound)
	}
	for _, e := range s.data.Enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return nil
		}
	}
	s.data.Enrollments = append(s.data.Enrollments, models.Enrollment{StudentID: studentID, CourseID: courseID})
	return s.saveLocked()
}

func (s *Storage) Unenroll(studentID, courseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.data.Enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			s.data.Enrollments = append(s.data.Enrollments[:i], s.data.Enrollments[i+1:]...)
			return s.saveLocked()
		}
	}
	return ErrNotFound
}

// CourseStudents lists the students enrolled in a course.
func (s *Storage) CourseStudents(courseID int64) ([]models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.data.Courses[courseID]; !ok {
		return nil, ErrNotFound
	}
	out := []models.Student{}
	for _, e := range s.data.Enrollments {
		if e.CourseID != courseID {
			continue
		}
		if a, ok := s.studentByIDLocked(e.StudentID); ok {
			out = append(out, s.studentLocked(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteBlobs removes content no document references any more.
func (s *Storage) DeleteBlobs(ctx context.Context, keys []string) error {
	var errs []error
	for _, k := range keys {
		if k == "" {
			continue
		}
		if err := s.BlobStore.Delete(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}
