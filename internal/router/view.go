package router

import (
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/store"
)

type State string

const (
	StateLoggedOut State = "logged-out"
	StateStudent   State = "student-dashboard"
	StateAdmin     State = "admin-dashboard"
)

// Tab is a sub-view of the admin dashboard.
type Tab string

const (
	TabCourses     Tab = "courses"
	TabStudents    Tab = "students"
	TabEnrollments Tab = "enrollments"
)

func (t Tab) Valid() bool {
	switch t {
	case TabCourses, TabStudents, TabEnrollments:
		return true
	}
	return false
}

// Placeholder text shown in place of empty lists.
const (
	NoPublicCourses   = "No courses available at the moment."
	NoEnrolledCourses = "You haven't enrolled in any courses yet. Contact your administrator to get started."
	NoAdminCourses    = "No courses created yet."
	NoStudents        = "No students registered yet."
	NoRoster          = "No students enrolled in this course."
	NoSections        = "No sections yet."
	NoDocuments       = "No documents uploaded"
)

// View is what a dashboard shows at one moment.
type View struct {
	State    State
	Tab      Tab
	Identity *models.Identity

	Courses  []models.Course
	Students []models.Student

	RosterCourseID int64
	Roster         []models.Student

	// Placeholders are set whenever the matching list is empty.
	CoursesPlaceholder  string
	StudentsPlaceholder string
	RosterPlaceholder   string

	Err error
}

// ShowsCourses reports whether the course list is part of this view.
func (v View) ShowsCourses() bool {
	return v.State != StateAdmin || v.Tab == TabCourses || v.Tab == TabEnrollments
}

// ShowsStudents reports whether the student list is part of this view.
func (v View) ShowsStudents() bool {
	return v.State == StateAdmin && (v.Tab == TabStudents || v.Tab == TabEnrollments)
}

func (v *View) fillPlaceholders() {
	v.CoursesPlaceholder, v.StudentsPlaceholder, v.RosterPlaceholder = "", "", ""
	if len(v.Courses) == 0 && v.ShowsCourses() {
		switch v.State {
		case StateLoggedOut:
			v.CoursesPlaceholder = NoPublicCourses
		case StateStudent:
			v.CoursesPlaceholder = NoEnrolledCourses
		default:
			v.CoursesPlaceholder = NoAdminCourses
		}
	}
	if len(v.Students) == 0 && v.ShowsStudents() {
		v.StudentsPlaceholder = NoStudents
	}
	if len(v.Roster) == 0 && v.RosterCourseID != 0 {
		v.RosterPlaceholder = NoRoster
	}
}

// ownedScopes are the store entries that only this view displays.
func (v View) ownedScopes() []store.Scope {
	switch v.State {
	case StateStudent:
		return []store.Scope{store.StudentCoursesScope}
	case StateAdmin:
		scopes := []store.Scope{store.AdminCoursesScope, store.AllStudentsScope}
		if v.RosterCourseID != 0 {
			scopes = append(scopes, store.RosterScope(v.RosterCourseID))
		}
		return scopes
	}
	return nil
}

func (v View) clone() View {
	out := v
	out.Courses = append([]models.Course(nil), v.Courses...)
	out.Students = append([]models.Student(nil), v.Students...)
	out.Roster = append([]models.Student(nil), v.Roster...)
	if v.Identity != nil {
		id := *v.Identity
		out.Identity = &id
	}
	return out
}
