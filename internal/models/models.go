package models

import "time"

// Role is the kind of account an identity belongs to.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// Identity is derived from a signed access token. The client never builds one
// from user input.
type Identity struct {
	Subject     string    `json:"subject"`
	Role        Role      `json:"role"`
	TokenExpiry time.Time `json:"token_expiry"`
}

// Expired reports whether the token backing the identity is no longer usable at now.
func (i Identity) Expired(now time.Time) bool {
	return !i.TokenExpiry.After(now)
}

// SameAs reports whether two identities name the same account and role.
func (i Identity) SameAs(other Identity) bool {
	return i.Subject == other.Subject && i.Role == other.Role
}

// Credentials are what a user types into a login or register form.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by the login endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// FileType is the category the server records for an uploaded document.
type FileType string

const (
	FileTypeDocument FileType = "document"
	FileTypeAudio    FileType = "audio"
	FileTypeVideo    FileType = "video"
	FileTypeImage    FileType = "image"
	FileTypeText     FileType = "text"
	FileTypeUnknown  FileType = "unknown"
)

// Ambiguous reports whether the declared type is too vague to pick a preview
// strategy without looking at the file URL.
func (t FileType) Ambiguous() bool {
	switch t {
	case "", FileTypeDocument, FileTypeUnknown:
		return true
	}
	return false
}

// Course is the root of the content tree.
type Course struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	Content            string    `json:"content,omitempty"`
	Instructor         string    `json:"instructor,omitempty"`
	Duration           string    `json:"duration,omitempty"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
	IsActive           bool      `json:"is_active"`
	Sections           []Section `json:"sections"`
	EnrolledStudentIDs []int64   `json:"enrolled_student_ids,omitempty"`
}

// StudentView is the read-only subset of a course shown to students.
func (c Course) StudentView() Course {
	c.EnrolledStudentIDs = nil
	return c
}

// Section belongs to exactly one course.
type Section struct {
	ID          int64      `json:"id"`
	CourseID    int64      `json:"course_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	OrderIndex  int        `json:"order_index"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	Documents   []Document `json:"documents"`
}

// Document belongs to exactly one section.
type Document struct {
	ID         int64     `json:"id"`
	SectionID  int64     `json:"section_id"`
	Title      string    `json:"title"`
	FileURL    string    `json:"file_url"`
	FileType   FileType  `json:"file_type"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Student is a registered learner account.
type Student struct {
	ID                int64     `json:"id"`
	Email             string    `json:"email"`
	CreatedAt         time.Time `json:"created_at"`
	IsActive          bool      `json:"is_active"`
	EnrolledCourseIDs []int64   `json:"enrolled_course_ids,omitempty"`
}

// Enrollment links a student to a course. The pair is its identity.
type Enrollment struct {
	StudentID int64 `json:"student_id" validate:"required,gt=0"`
	CourseID  int64 `json:"course_id" validate:"required,gt=0"`
}

// CourseInput is the payload for course create and update.
type CourseInput struct {
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
	Instructor  string `json:"instructor,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// SectionInput is the payload for section create and update.
type SectionInput struct {
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description,omitempty"`
	OrderIndex  int    `json:"order_index" validate:"gte=0"`
}

// DocumentUpload describes a multipart document upload.
type DocumentUpload struct {
	Title      string `validate:"required,notblank"`
	FileName   string `validate:"required,upload_ext"`
	OrderIndex int    `validate:"gte=0"`
	Content    []byte `validate:"required,min=1"`
}
