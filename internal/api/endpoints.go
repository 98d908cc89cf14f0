package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/gabriel-vasile/mimetype"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/transport"
)

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, transport.PathHealth, nil, false, nil)
}

// Login exchanges credentials for an access token at the role's endpoint.
func (c *Client) Login(ctx context.Context, role models.Role, creds models.Credentials) (string, error) {
	var tr models.TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, transport.LoginPath(role), creds, false, &tr); err != nil {
		return "", err
	}
	return tr.AccessToken, nil
}

// Register creates a student account.
func (c *Client) Register(ctx context.Context, creds models.Credentials) error {
	return c.doJSON(ctx, http.MethodPost, transport.PathRegister, creds, false, nil)
}

// Logout tells the server the session is over.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, transport.PathLogout, nil, true, nil)
}

// PublicCourses lists courses visible without logging in.
func (c *Client) PublicCourses(ctx context.Context) ([]models.Course, error) {
	var out []models.Course
	err := c.doJSON(ctx, http.MethodGet, transport.PathPublicCourses, nil, false, &out)
	return out, err
}

// Course fetches a single course with its sections.
func (c *Client) Course(ctx context.Context, id int64) (models.Course, error) {
	var out models.Course
	err := c.doJSON(ctx, http.MethodGet, transport.CoursePath(id), nil, false, &out)
	return out, err
}

// StudentCourses lists the courses the logged-in student is enrolled in.
func (c *Client) StudentCourses(ctx context.Context) ([]models.Course, error) {
	var out []models.Course
	err := c.doJSON(ctx, http.MethodGet, transport.PathStudentCourses, nil, true, &out)
	return out, err
}

// StudentProfile returns the logged-in student's account.
func (c *Client) StudentProfile(ctx context.Context) (models.Student, error) {
	var out models.Student
	err := c.doJSON(ctx, http.MethodGet, transport.PathStudentProfile, nil, true, &out)
	return out, err
}

func (c *Client) AdminCourses(ctx context.Context) ([]models.Course, error) {
	var out []models.Course
	err := c.doJSON(ctx, http.MethodGet, transport.PathAdminCourses, nil, true, &out)
	return out, err
}

func (c *Client) CreateCourse(ctx context.Context, in models.CourseInput) (models.Course, error) {
	var out models.Course
	err := c.doJSON(ctx, http.MethodPost, transport.PathAdminCourses, in, true, &out)
	return out, err
}

func (c *Client) UpdateCourse(ctx context.Context, id int64, in models.CourseInput) (models.Course, error) {
	var out models.Course
	err := c.doJSON(ctx, http.MethodPut, transport.AdminCoursePath(id), in, true, &out)
	return out, err
}

func (c *Client) DeleteCourse(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, transport.AdminCoursePath(id), nil, true, nil)
}

func (c *Client) Sections(ctx context.Context, courseID int64) ([]models.Section, error) {
	var out []models.Section
	err := c.doJSON(ctx, http.MethodGet, transport.CourseSectionsPath(courseID), nil, true, &out)
	return out, err
}

func (c *Client) CreateSection(ctx context.Context, courseID int64, in models.SectionInput) (models.Section, error) {
	var out models.Section
	err := c.doJSON(ctx, http.MethodPost, transport.CourseSectionsPath(courseID), in, true, &out)
	return out, err
}

func (c *Client) UpdateSection(ctx context.Context, id int64, in models.SectionInput) (models.Section, error) {
	var out models.Section
	err := c.doJSON(ctx, http.MethodPut, transport.SectionPath(id), in, true, &out)
	return out, err
}

func (c *Client) DeleteSection(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, transport.SectionPath(id), nil, true, nil)
}

// UploadDocument sends a multipart form with the title, order index and file.
// The file part's content type is sniffed from its bytes.
func (c *Client) UploadDocument(ctx context.Context, sectionID int64, up models.DocumentUpload) (models.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("title", up.Title); err != nil {
		return models.Document{}, fmt.Errorf("failed to write title field: %w", err)
	}
	if err := mw.WriteField("order_index", strconv.Itoa(up.OrderIndex)); err != nil {
		return models.Document{}, fmt.Errorf("failed to write order field: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(up.FileName)))
	h.Set("Content-Type", mimetype.Detect(up.Content).String())
	part, err := mw.CreatePart(h)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(up.Content); err != nil {
		return models.Document{}, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return models.Document{}, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, transport.SectionDocumentsPath(sectionID), &buf, true)
	if err != nil {
		return models.Document{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out models.Document
	err = c.do(req, &out)
	return out, err
}

func (c *Client) DeleteDocument(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, transport.DocumentPath(id), nil, true, nil)
}

func (c *Client) Students(ctx context.Context) ([]models.Student, error) {
	var out []models.Student
	err := c.doJSON(ctx, http.MethodGet, transport.PathAdminStudents, nil, true, &out)
	return out, err
}

// CourseStudents lists the roster of a course.
func (c *Client) CourseStudents(ctx context.Context, courseID int64) ([]models.Student, error) {
	var out []models.Student
	err := c.doJSON(ctx, http.MethodGet, transport.CourseStudentsPath(courseID), nil, true, &out)
	return out, err
}

func (c *Client) Enroll(ctx context.Context, e models.Enrollment) error {
	return c.doJSON(ctx, http.MethodPost, transport.PathAdminEnroll, e, true, nil)
}

func (c *Client) Unenroll(ctx context.Context, e models.Enrollment) error {
	return c.doJSON(ctx, http.MethodDelete, transport.PathAdminEnroll, e, true, nil)
}

func escapeQuotes(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
