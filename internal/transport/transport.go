package transport

import (
	"fmt"
	"net/url"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
)

// Constants for default server configuration.
const (
	// DefaultServerPort is the default port the dev server listens on.
	DefaultServerPort = ":8082"
	// DefaultServerURL is the default URL the client talks to.
	DefaultServerURL = "http://localhost:8082"
)

// REST paths consumed by the client.
const (
	PathHealth          = "/api/health"
	PathRegister        = "/api/auth/student/register"
	PathLogout          = "/api/auth/logout"
	PathPublicCourses   = "/api/courses"
	PathStudentCourses  = "/api/student/courses"
	PathStudentProfile  = "/api/student/profile"
	PathAdminCourses    = "/api/admin/courses"
	PathAdminStudents   = "/api/admin/students"
	PathAdminEnroll     = "/api/admin/enroll"
	PathPDFProxy        = "/api/pdf-proxy"
	PathFiles           = "/files"
	HeaderAuthorization = "Authorization"
)

// LoginPath returns the role-specific login endpoint.
func LoginPath(role models.Role) string {
	return fmt.Sprintf("/api/auth/%s/login", role)
}

func CoursePath(id int64) string {
	return fmt.Sprintf("/api/courses/%d", id)
}

func AdminCoursePath(id int64) string {
	return fmt.Sprintf("/api/admin/courses/%d", id)
}

func CourseSectionsPath(courseID int64) string {
	return fmt.Sprintf("/api/admin/courses/%d/sections", courseID)
}

func CourseStudentsPath(courseID int64) string {
	return fmt.Sprintf("/api/admin/courses/%d/students", courseID)
}

func SectionPath(id int64) string {
	return fmt.Sprintf("/api/admin/sections/%d", id)
}

func SectionDocumentsPath(sectionID int64) string {
	return fmt.Sprintf("/api/admin/sections/%d/documents", sectionID)
}

func DocumentPath(id int64) string {
	return fmt.Sprintf("/api/admin/documents/%d", id)
}

// PDFProxyPath wraps a file URL so the server re-serves it for inline viewing.
func PDFProxyPath(fileURL string) string {
	return PathPDFProxy + "?url=" + url.QueryEscape(fileURL)
}
