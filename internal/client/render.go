package client

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/media"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/router"
)

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}

func renderCourses(w io.Writer, courses []models.Course, placeholder string, admin bool) {
	if len(courses) == 0 {
		_, _ = fmt.Fprintln(w, placeholder)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if admin {
		_, _ = fmt.Fprintln(tw, "ID\tTITLE\tINSTRUCTOR\tSECTIONS\tACTIVE\tSTUDENTS")
	} else {
		_, _ = fmt.Fprintln(tw, "ID\tTITLE\tINSTRUCTOR\tSECTIONS")
	}
	for _, c := range courses {
		if admin {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%t\t%s\n", c.ID, c.Title, c.Instructor, len(c.Sections), c.IsActive, joinIDs(c.EnrolledStudentIDs))
		} else {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", c.ID, c.Title, c.Instructor, len(c.Sections))
		}
	}
	_ = tw.Flush()
}

func renderStudents(w io.Writer, students []models.Student, placeholder string) {
	if len(students) == 0 {
		_, _ = fmt.Fprintln(w, placeholder)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tEMAIL\tACTIVE\tCOURSES")
	for _, s := range students {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%t\t%s\n", s.ID, s.Email, s.IsActive, joinIDs(s.EnrolledCourseIDs))
	}
	_ = tw.Flush()
}

func renderCourse(w io.Writer, c models.Course) {
	_, _ = fmt.Fprintf(w, "%s (#%d)\n", c.Title, c.ID)
	if c.Instructor != "" {
		_, _ = fmt.Fprintf(w, "Instructor: %s\n", c.Instructor)
	}
	if c.Duration != "" {
		_, _ = fmt.Fprintf(w, "Duration: %s\n", c.Duration)
	}
	if c.Description != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", c.Description)
	}
	_, _ = fmt.Fprintln(w)
	renderSections(w, c.Sections)
}

func renderSections(w io.Writer, sections []models.Section) {
	if len(sections) == 0 {
		_, _ = fmt.Fprintln(w, router.NoSections)
		return
	}
	for _, s := range sections {
		_, _ = fmt.Fprintf(w, "[%d] %s (#%d)\n", s.OrderIndex, s.Title, s.ID)
		if len(s.Documents) == 0 {
			_, _ = fmt.Fprintf(w, "    %s\n", router.NoDocuments)
			continue
		}
		for _, d := range s.Documents {
			_, _ = fmt.Fprintf(w, "    #%d %s [%s] %s\n", d.ID, d.Title, d.FileType, d.FileURL)
		}
	}
}

func renderView(w io.Writer, v router.View) {
	switch v.State {
	case router.StateLoggedOut:
		_, _ = fmt.Fprintln(w, "Available courses")
	case router.StateStudent:
		_, _ = fmt.Fprintf(w, "My courses (%s)\n", v.Identity.Subject)
	case router.StateAdmin:
		_, _ = fmt.Fprintf(w, "Admin dashboard (%s) tab: %s\n", v.Identity.Subject, v.Tab)
	}
	if v.Err != nil {
		_, _ = fmt.Fprintf(w, "Failed to load: %v\n", v.Err)
	}
	admin := v.State == router.StateAdmin
	if v.ShowsCourses() {
		_, _ = fmt.Fprintln(w)
		renderCourses(w, v.Courses, v.CoursesPlaceholder, admin)
	}
	if v.ShowsStudents() {
		_, _ = fmt.Fprintln(w)
		renderStudents(w, v.Students, v.StudentsPlaceholder)
	}
	if v.RosterCourseID != 0 {
		_, _ = fmt.Fprintf(w, "\nRoster for course #%d\n", v.RosterCourseID)
		renderStudents(w, v.Roster, v.RosterPlaceholder)
	}
}

func renderPreview(w io.Writer, p media.Preview) {
	_, _ = fmt.Fprintf(w, "%s [%s] %s\n", p.Title, p.Kind, p.State)
	if p.State == media.StateRendered {
		in := p.Inline
		switch p.Kind {
		case media.KindImage:
			_, _ = fmt.Fprintf(w, "%s image, %dx%d, %d bytes\n", in.Format, in.Width, in.Height, in.Bytes)
		case media.KindAudio, media.KindVideo:
			_, _ = fmt.Fprintf(w, "%s stream, playable\n", in.MIME)
		case media.KindPDF:
			_, _ = fmt.Fprintf(w, "View inline: %s\n", in.ViewURL)
		case media.KindText:
			_, _ = fmt.Fprintln(w, "----")
			_, _ = fmt.Fprintln(w, strings.TrimRight(in.Text, "\n"))
			if in.Truncated {
				_, _ = fmt.Fprintln(w, "---- (truncated)")
			} else {
				_, _ = fmt.Fprintln(w, "----")
			}
		}
	} else {
		_, _ = fmt.Fprintln(w, p.Fallback.Message)
	}
	_, _ = fmt.Fprintf(w, "Open: %s\n", p.Fallback.OpenURL)
	_, _ = fmt.Fprintf(w, "Download: %s\n", p.Fallback.DownloadURL)
}
