package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/transport"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/validation"
)

var audioExtensions = map[string]bool{
	"mp3": true, "wav": true, "ogg": true, "m4a": true, "aac": true, "flac": true,
}

func (h *Handler) notFoundOr500(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	h.log.Error("storage failure", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (h *Handler) PublicCourses(w http.ResponseWriter, _ *http.Request) {
	courses := h.Storage.Courses(true)
	for i := range courses {
		courses[i] = courses[i].StudentView()
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "courseID")
	if !ok {
		writeError(w, http.StatusNotFound, "Course not found")
		return
	}
	c, err := h.Storage.Course(id)
	if err != nil {
		h.notFoundOr500(w, err, "Course")
		return
	}
	writeJSON(w, http.StatusOK, c.StudentView())
}

func (h *Handler) StudentCourses(w http.ResponseWriter, r *http.Request) {
	st, err := h.Storage.StudentByEmail(claimsFrom(r.Context()).Subject)
	if err != nil {
		h.notFoundOr500(w, err, "Student")
		return
	}
	writeJSON(w, http.StatusOK, h.Storage.CoursesForStudent(st.ID))
}

func (h *Handler) StudentProfile(w http.ResponseWriter, r *http.Request) {
	st, err := h.Storage.StudentByEmail(claimsFrom(r.Context()).Subject)
	if err != nil {
		h.notFoundOr500(w, err, "Student")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) AdminCourses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Storage.Courses(false))
}

func decodeInput[T any](w http.ResponseWriter, r *http.Request, op string) (T, bool) {
	var in T
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return in, false
	}
	if err := validation.Struct(op, in); err != nil {
		writeError(w, http.StatusUnprocessableEntity, detailOf(err))
		return in, false
	}
	return in, true
}

func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput[models.CourseInput](w, r, "create course")
	if !ok {
		return
	}
	c, err := h.Storage.CreateCourse(in)
	if err != nil {
		h.notFoundOr500(w, err, "Course")
		return
	}
	h.log.Info("course created", "course_id", c.ID)
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "courseID")
	if !ok {
		writeError(w, http.StatusNotFound, "Course not found")
		return
	}
	in, ok := decodeInput[models.CourseInput](w, r, "update course")
	if !ok {
		return
	}
	c, err := h.Storage.UpdateCourse(id, in)
	if err != nil {
		h.notFoundOr500(w, err, "Course")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "courseID")
	if !ok {
		writeError(w, http.StatusNotFound, "Course not found")
		return
	}
	keys, err := h.Storage.DeleteCourse(id)
	if err != nil {
		h.notFoundOr500(w, err, "Course")
		return
	}
	if err := h.Storage.DeleteBlobs(r.Context(), keys); err != nil {
		h.log.Warn("failed to delete course blobs", "course_id", id, "error", err)
	}
	h.log.Info("course deleted", "course_id", id, "documents", len(keys))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Course deleted successfully"})
}

func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "courseID")
	if !ok {
		writeError(w, http.StatusNotFound, "Course not found")
		return
	}
	sections, err := h.Storage.Sections(id)
	if err != nil {
		h.notFoundOr500(w, err, "Course")
		return
	}
	writeJSON(w, http.StatusOK, sections)
}

func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "courseID")
	if !ok {
		writeError(w, http.StatusNotFound, "Course not found")
		return
	}
	in, ok := decodeInput[models.SectionInput](w, r, "create section")
	if !ok {
		return
	}
	sec, err := h.Storage.CreateSection(id, in)
	if err != nil {
		h.notFoundOr500(w, err, "Course")
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (h *Handler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "sectionID")
	if !ok {
		writeError(w, http.StatusNotFound, "Section not found")
		return
	}
	in, ok := decodeInput[models.SectionInput](w, r, "update section")
	if !ok {
		return
	}
	sec, err := h.Storage.UpdateSection(id, in)
	if err != nil {
		h.notFoundOr500(w, err, "Section")
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "sectionID")
	if !ok {
		writeError(w, http.StatusNotFound, "Section not found")
		return
	}
	keys, err := h.Storage.DeleteSection(id)
	if err != nil {
		h.notFoundOr500(w, err, "Section")
		return
	}
	if err := h.Storage.DeleteBlobs(r.Context(), keys); err != nil {
		h.log.Warn("failed to delete section blobs", "section_id", id, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Section deleted successfully"})
}

// UploadDocument accepts multipart title, order_index and file fields.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "sectionID")
	if !ok || !h.Storage.SectionExists(id) {
		writeError(w, http.StatusNotFound, "Section not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid upload form")
		return
	}

	// 1. Read fields
	title := strings.TrimSpace(r.FormValue("title"))
	orderIndex, _ := strconv.Atoi(r.FormValue("order_index"))
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer func() { _ = file.Close() }()
	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	up := models.DocumentUpload{Title: title, FileName: header.Filename, OrderIndex: orderIndex, Content: content}
	if err := validation.Struct("upload document", up); err != nil {
		writeError(w, http.StatusBadRequest, detailOf(err))
		return
	}

	// 2. Store content
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(header.Filename), "."))
	fileType := models.FileTypeDocument
	if audioExtensions[ext] {
		fileType = models.FileTypeAudio
	}
	key := "section_" + string(fileType) + "s/" + uuid.NewString() + "." + ext
	contentType := mimetype.Detect(content).String()
	if err := h.Storage.BlobStore.Save(r.Context(), key, content, contentType); err != nil {
		h.log.Error("blob upload failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	// 3. Record document
	doc, err := h.Storage.AddDocument(models.Document{
		SectionID:  id,
		Title:      title,
		FileURL:    h.fileURL(key),
		FileType:   fileType,
		OrderIndex: orderIndex,
	}, key)
	if err != nil {
		_ = h.Storage.DeleteBlobs(r.Context(), []string{key})
		h.notFoundOr500(w, err, "Section")
		return
	}
	h.log.Info("document uploaded", "section_id", id, "document_id", doc.ID, "bytes", len(content))
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) fileURL(key string) string {
	return h.cfg.PublicBaseURL + transport.PathFiles + "/" + key
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "documentID")
	if !ok {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	key, err := h.Storage.DeleteDocument(id)
	if err != nil {
		h.notFoundOr500(w, err, "Document")
		return
	}
	if err := h.Storage.DeleteBlobs(r.Context(), []string{key}); err != nil {
		h.log.Warn("failed to delete document blob", "document_id", id, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
}

func (h *Handler) ListStudents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Storage.Students())
}

func (h *Handler) CourseStudents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "courseID")
	if !ok {
		writeError(w, http.StatusNotFound, "Course not found")
		return
	}
	students, err := h.Storage.CourseStudents(id)
	if err != nil {
		h.notFoundOr500(w, err, "Course")
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	e, ok := decodeInput[models.Enrollment](w, r, "enroll")
	if !ok {
		return
	}
	if err := h.Storage.Enroll(e.StudentID, e.CourseID); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusBadRequest, "Failed to enroll student")
			return
		}
		h.notFoundOr500(w, err, "Enrollment")
		return
	}
	h.log.Info("student enrolled", "student_id", e.StudentID, "course_id", e.CourseID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Student enrolled successfully"})
}

func (h *Handler) Unenroll(w http.ResponseWriter, r *http.Request) {
	e, ok := decodeInput[models.Enrollment](w, r, "unenroll")
	if !ok {
		return
	}
	if err := h.Storage.Unenroll(e.StudentID, e.CourseID); err != nil {
		h.notFoundOr500(w, err, "Enrollment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Student removed from course successfully"})
}

// readLimited is used by the pdf proxy to cap remote bodies.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if n > limit {
		return nil, errors.New("remote file exceeds size limit")
	}
	return buf.Bytes(), nil
}
