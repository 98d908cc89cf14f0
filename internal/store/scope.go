package store

import "strconv"

// Collection names a remote collection.
type Collection string

const (
	CollCourses  Collection = "courses"
	CollCourse   Collection = "course"
	CollStudents Collection = "students"
	CollSections Collection = "sections"
	CollStudent  Collection = "student"
)

// Scope is a cache key identifying one collection view.
type Scope struct {
	Collection Collection
	Key        string
}

func (s Scope) String() string {
	return string(s.Collection) + "/" + s.Key
}

var (
	PublicCoursesScope  = Scope{CollCourses, "public"}
	AdminCoursesScope   = Scope{CollCourses, "admin"}
	StudentCoursesScope = Scope{CollCourses, "student"}
	AllStudentsScope    = Scope{CollStudents, "all"}
)

// CourseScope is the detail view of one course.
func CourseScope(courseID int64) Scope {
	return Scope{CollCourse, strconv.FormatInt(courseID, 10)}
}

// SectionsScope holds a course's sections and, nested in them, their documents.
func SectionsScope(courseID int64) Scope {
	return Scope{CollSections, strconv.FormatInt(courseID, 10)}
}

// RosterScope is the list of students enrolled in a course.
func RosterScope(courseID int64) Scope {
	return Scope{CollStudents, strconv.FormatInt(courseID, 10)}
}

// StudentScope is the derived enrollment view of one student.
func StudentScope(studentID int64) Scope {
	return Scope{CollStudent, strconv.FormatInt(studentID, 10)}
}

func parseID(key string) (int64, bool) {
	id, err := strconv.ParseInt(key, 10, 64)
	return id, err == nil
}
