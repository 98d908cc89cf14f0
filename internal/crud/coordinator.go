package crud

import (
	"context"
	"errors"
	"net/http"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/api"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/apperr"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/logger"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/store"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/validation"
)

// Mutator is the write side of the platform API.
type Mutator interface {
	CreateCourse(ctx context.Context, in models.CourseInput) (models.Course, error)
	UpdateCourse(ctx context.Context, id int64, in models.CourseInput) (models.Course, error)
	DeleteCourse(ctx context.Context, id int64) error
	CreateSection(ctx context.Context, courseID int64, in models.SectionInput) (models.Section, error)
	UpdateSection(ctx context.Context, id int64, in models.SectionInput) (models.Section, error)
	DeleteSection(ctx context.Context, id int64) error
	UploadDocument(ctx context.Context, sectionID int64, up models.DocumentUpload) (models.Document, error)
	DeleteDocument(ctx context.Context, id int64) error
	Enroll(ctx context.Context, e models.Enrollment) error
	Unenroll(ctx context.Context, e models.Enrollment) error
}

// Authorizer gates mutations on the current session.
type Authorizer interface {
	RequireRole(op string, role models.Role) (models.Identity, error)
}

// Cache is what the coordinator needs from the content store.
type Cache interface {
	Invalidate(ctx context.Context, scopes ...store.Scope)
	InvalidateCourseTree(ctx context.Context, courseID int64)
	InvalidateCollection(ctx context.Context, coll store.Collection)
	SectionOwner(sectionID int64) (int64, bool)
	DocumentOwner(docID int64) (int64, bool)
	IsEnrolled(ctx context.Context, studentID, courseID int64) (bool, error)
}

// Indicator shows that a mutation is in progress.
type Indicator interface {
	Begin(op string)
	End(op string)
}

type nopIndicator struct{}

func (nopIndicator) Begin(string) {}
func (nopIndicator) End(string)   {}

// Coordinator performs admin mutations and keeps the store consistent with
// what the server confirmed.
type Coordinator struct {
	api   Mutator
	auth  Authorizer
	cache Cache
	busy  Indicator
	log   *logger.Logger
}

type Option func(*Coordinator)

func WithIndicator(ind Indicator) Option {
	return func(c *Coordinator) { c.busy = ind }
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

func New(m Mutator, auth Authorizer, cache Cache, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:   m,
		auth:  auth,
		cache: cache,
		busy:  nopIndicator{},
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// begin authorizes op and raises the busy indicator. The returned func lowers it.
func (c *Coordinator) begin(op string) (func(), error) {
	if _, err := c.auth.RequireRole(op, models.RoleAdmin); err != nil {
		return nil, err
	}
	c.busy.Begin(op)
	return func() { c.busy.End(op) }, nil
}

func (c *Coordinator) CreateCourse(ctx context.Context, in models.CourseInput) (models.Course, error) {
	const op = "crud.CreateCourse"
	done, err := c.begin(op)
	if err != nil {
		return models.Course{}, err
	}
	defer done()

	if err := validation.Struct(op, in); err != nil {
		return models.Course{}, err
	}
	course, err := c.api.CreateCourse(ctx, in)
	if err != nil {
		return models.Course{}, classify(op, err)
	}
	c.cache.Invalidate(ctx, store.AdminCoursesScope, store.PublicCoursesScope)
	c.log.Info("course created", "course_id", course.ID, "title", course.Title)
	return course, nil
}

func (c *Coordinator) UpdateCourse(ctx context.Context, id int64, in models.CourseInput) (models.Course, error) {
	const op = "crud.UpdateCourse"
	done, err := c.begin(op)
	if err != nil {
		return models.Course{}, err
	}
	defer done()

	if err := validation.Var(op, "course_id", id, "gt=0"); err != nil {
		return models.Course{}, err
	}
	if err := validation.Struct(op, in); err != nil {
		return models.Course{}, err
	}
	course, err := c.api.UpdateCourse(ctx, id, in)
	if err != nil {
		return models.Course{}, classify(op, err)
	}
	c.cache.Invalidate(ctx,
		store.CourseScope(id),
		store.AdminCoursesScope,
		store.PublicCoursesScope,
		store.StudentCoursesScope,
	)
	c.log.Info("course updated", "course_id", id)
	return course, nil
}

// DeleteCourse removes a course; the server cascades to its sections and documents.
func (c *Coordinator) DeleteCourse(ctx context.Context, id int64) error {
	const op = "crud.DeleteCourse"
	done, err := c.begin(op)
	if err != nil {
		return err
	}
	defer done()

	if err := validation.Var(op, "course_id", id, "gt=0"); err != nil {
		return err
	}
	if err := c.api.DeleteCourse(ctx, id); err != nil {
		return classify(op, err)
	}
	c.cache.InvalidateCourseTree(ctx, id)
	c.log.Info("course deleted", "course_id", id)
	return nil
}

func (c *Coordinator) CreateSection(ctx context.Context, courseID int64, in models.SectionInput) (models.Section, error) {
	const op = "crud.CreateSection"
	done, err := c.begin(op)
	if err != nil {
		return models.Section{}, err
	}
	defer done()

	if err := validation.Var(op, "course_id", courseID, "gt=0"); err != nil {
		return models.Section{}, err
	}
	if err := validation.Struct(op, in); err != nil {
		return models.Section{}, err
	}
	sec, err := c.api.CreateSection(ctx, courseID, in)
	if err != nil {
		return models.Section{}, classify(op, err)
	}
	c.invalidateCourseContent(ctx, courseID)
	c.log.Info("section created", "course_id", courseID, "section_id", sec.ID)
	return sec, nil
}

func (c *Coordinator) UpdateSection(ctx context.Context, id int64, in models.SectionInput) (models.Section, error) {
	const op = "crud.UpdateSection"
	done, err := c.begin(op)
	if err != nil {
		return models.Section{}, err
	}
	defer done()

	if err := validation.Var(op, "section_id", id, "gt=0"); err != nil {
		return models.Section{}, err
	}
	if err := validation.Struct(op, in); err != nil {
		return models.Section{}, err
	}
	owner, known := c.cache.SectionOwner(id)
	sec, err := c.api.UpdateSection(ctx, id, in)
	if err != nil {
		return models.Section{}, classify(op, err)
	}
	if sec.CourseID > 0 {
		owner, known = sec.CourseID, true
	}
	c.invalidateSectionOwner(ctx, owner, known)
	c.log.Info("section updated", "section_id", id)
	return sec, nil
}

// DeleteSection removes a section and, server-side, its documents.
func (c *Coordinator) DeleteSection(ctx context.Context, id int64) error {
	const op = "crud.DeleteSection"
	done, err := c.begin(op)
	if err != nil {
		return err
	}
	defer done()

	if err := validation.Var(op, "section_id", id, "gt=0"); err != nil {
		return err
	}
	owner, known := c.cache.SectionOwner(id)
	if err := c.api.DeleteSection(ctx, id); err != nil {
		return classify(op, err)
	}
	c.invalidateSectionOwner(ctx, owner, known)
	c.log.Info("section deleted", "section_id", id)
	return nil
}

// UploadDocument attaches a file to a section.
func (c *Coordinator) UploadDocument(ctx context.Context, sectionID int64, up models.DocumentUpload) (models.Document, error) {
	const op = "crud.UploadDocument"
	done, err := c.begin(op)
	if err != nil {
		return models.Document{}, err
	}
	defer done()

	if err := validation.Var(op, "section_id", sectionID, "gt=0"); err != nil {
		return models.Document{}, err
	}
	if err := validation.Struct(op, up); err != nil {
		return models.Document{}, err
	}
	owner, known := c.cache.SectionOwner(sectionID)
	doc, err := c.api.UploadDocument(ctx, sectionID, up)
	if err != nil {
		return models.Document{}, classifyUpload(op, err)
	}
	c.invalidateSectionOwner(ctx, owner, known)
	c.log.Info("document uploaded", "section_id", sectionID, "document_id", doc.ID, "bytes", len(up.Content))
	return doc, nil
}

func (c *Coordinator) DeleteDocument(ctx context.Context, id int64) error {
	const op = "crud.DeleteDocument"
	done, err := c.begin(op)
	if err != nil {
		return err
	}
	defer done()

	if err := validation.Var(op, "document_id", id, "gt=0"); err != nil {
		return err
	}
	var owner int64
	section, known := c.cache.DocumentOwner(id)
	if known {
		owner, known = c.cache.SectionOwner(section)
	}
	if err := c.api.DeleteDocument(ctx, id); err != nil {
		return classify(op, err)
	}
	c.invalidateSectionOwner(ctx, owner, known)
	c.log.Info("document deleted", "document_id", id)
	return nil
}

// Enroll adds a student to a course. A student already on the roster yields
// AlreadyEnrolled and no request is sent.
func (c *Coordinator) Enroll(ctx context.Context, studentID, courseID int64) error {
	const op = "crud.Enroll"
	done, err := c.begin(op)
	if err != nil {
		return err
	}
	defer done()

	e := models.Enrollment{StudentID: studentID, CourseID: courseID}
	if err := validation.Struct(op, e); err != nil {
		return err
	}

	// 1. Check a fresh roster
	c.cache.Invalidate(ctx, store.RosterScope(courseID))
	enrolled, err := c.cache.IsEnrolled(ctx, studentID, courseID)
	if err != nil {
		return err
	}
	if enrolled {
		return &apperr.Error{Op: op, Kind: apperr.KindAlreadyEnrolled, Detail: "student is already enrolled in this course"}
	}

	// 2. Enroll
	if err := c.api.Enroll(ctx, e); err != nil {
		if api.StatusOf(err) == http.StatusConflict {
			c.invalidateEnrollment(ctx, e)
			return &apperr.Error{Op: op, Kind: apperr.KindAlreadyEnrolled, Status: http.StatusConflict, Detail: api.DetailOf(err), Err: err}
		}
		return classify(op, err)
	}

	// 3. Invalidate derived views
	c.invalidateEnrollment(ctx, e)
	c.log.Info("student enrolled", "student_id", studentID, "course_id", courseID)
	return nil
}

func (c *Coordinator) Unenroll(ctx context.Context, studentID, courseID int64) error {
	const op = "crud.Unenroll"
	done, err := c.begin(op)
	if err != nil {
		return err
	}
	defer done()

	e := models.Enrollment{StudentID: studentID, CourseID: courseID}
	if err := validation.Struct(op, e); err != nil {
		return err
	}
	if err := c.api.Unenroll(ctx, e); err != nil {
		return classify(op, err)
	}
	c.invalidateEnrollment(ctx, e)
	c.log.Info("student unenrolled", "student_id", studentID, "course_id", courseID)
	return nil
}

func (c *Coordinator) invalidateCourseContent(ctx context.Context, courseID int64) {
	c.cache.Invalidate(ctx, store.SectionsScope(courseID), store.CourseScope(courseID))
}

// invalidateSectionOwner drops the owning course's content, or every course's
// when the owner was never loaded.
func (c *Coordinator) invalidateSectionOwner(ctx context.Context, courseID int64, known bool) {
	if known {
		c.invalidateCourseContent(ctx, courseID)
		return
	}
	c.log.Debug("section owner unknown, dropping all section scopes")
	c.cache.InvalidateCollection(ctx, store.CollSections)
	c.cache.InvalidateCollection(ctx, store.CollCourse)
}

func (c *Coordinator) invalidateEnrollment(ctx context.Context, e models.Enrollment) {
	c.cache.Invalidate(ctx,
		store.RosterScope(e.CourseID),
		store.StudentScope(e.StudentID),
		store.AllStudentsScope,
		store.AdminCoursesScope,
		store.StudentCoursesScope,
	)
}

func classify(op string, err error) error {
	return classifyWith(op, err, apperr.MutationKind, apperr.KindServerUnavailable)
}

func classifyUpload(op string, err error) error {
	return classifyWith(op, err, apperr.UploadKind, apperr.KindUploadFailed)
}

func classifyWith(op string, err error, byStatus func(int) apperr.Kind, transport apperr.Kind) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, api.ErrNoToken) {
		return apperr.New(op, apperr.KindUnauthorized, err)
	}
	status := api.StatusOf(err)
	if status == 0 {
		return apperr.New(op, transport, err)
	}
	return &apperr.Error{
		Op:     op,
		Kind:   byStatus(status),
		Status: status,
		Detail: api.DetailOf(err),
		Err:    err,
	}
}
