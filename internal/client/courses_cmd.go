package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/router"
)

func (c *cli) newCoursesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List, show and manage courses",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the courses visible to the current session",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			var (
				courses     []models.Course
				placeholder string
				err         error
			)
			id := a.Identity()
			switch {
			case id == nil:
				courses, err = a.Store.PublicCourses(ctx)
				placeholder = router.NoPublicCourses
			case id.Role == models.RoleAdmin:
				courses, err = a.Store.AdminCourses(ctx)
				placeholder = router.NoAdminCourses
			default:
				courses, err = a.Store.StudentCourses(ctx)
				placeholder = router.NoEnrolledCourses
			}
			if err != nil {
				return err
			}
			renderCourses(cmd.OutOrStdout(), courses, placeholder, id != nil && id.Role == models.RoleAdmin)
			return nil
		}),
	}

	show := &cobra.Command{
		Use:   "show <course-id>",
		Short: "Show a course with its sections and documents",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			id, err := parseID("course", args[0])
			if err != nil {
				return err
			}
			course, err := a.Store.Course(ctx, id)
			if err != nil {
				return err
			}
			renderCourse(cmd.OutOrStdout(), course)
			return nil
		}),
	}

	var in models.CourseInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a course",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			course, err := a.CRUD.CreateCourse(ctx, in)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created course #%d %s\n", course.ID, course.Title)
			return nil
		}),
	}
	courseFlags(create, &in)

	var upd models.CourseInput
	update := &cobra.Command{
		Use:   "update <course-id>",
		Short: "Update a course; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			id, err := parseID("course", args[0])
			if err != nil {
				return err
			}
			current, err := a.Store.Course(ctx, id)
			if err != nil {
				return err
			}
			merged := models.CourseInput{
				Title:       pick(cmd, "title", upd.Title, current.Title),
				Description: pick(cmd, "description", upd.Description, current.Description),
				Content:     pick(cmd, "content", upd.Content, current.Content),
				Instructor:  pick(cmd, "instructor", upd.Instructor, current.Instructor),
				Duration:    pick(cmd, "duration", upd.Duration, current.Duration),
			}
			course, err := a.CRUD.UpdateCourse(ctx, id, merged)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated course #%d %s\n", course.ID, course.Title)
			return nil
		}),
	}
	courseFlags(update, &upd)

	del := &cobra.Command{
		Use:   "delete <course-id>",
		Short: "Delete a course with all its sections and documents",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			id, err := parseID("course", args[0])
			if err != nil {
				return err
			}
			if err := a.CRUD.DeleteCourse(ctx, id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted course #%d\n", id)
			return nil
		}),
	}

	cmd.AddCommand(list, show, create, update, del)
	return cmd
}

func courseFlags(cmd *cobra.Command, in *models.CourseInput) {
	cmd.Flags().StringVar(&in.Title, "title", "", "course title")
	cmd.Flags().StringVar(&in.Description, "description", "", "short description")
	cmd.Flags().StringVar(&in.Content, "content", "", "course content")
	cmd.Flags().StringVar(&in.Instructor, "instructor", "", "instructor name")
	cmd.Flags().StringVar(&in.Duration, "duration", "", "duration, e.g. \"8 weeks\"")
}

// pick returns the flag value when the flag was given, else current.
func pick(cmd *cobra.Command, flag, val, current string) string {
	if cmd.Flags().Changed(flag) {
		return val
	}
	return current
}

func (c *cli) newSectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sections",
		Short: "Manage the sections of a course",
	}

	list := &cobra.Command{
		Use:   "list <course-id>",
		Short: "List a course's sections and documents",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			courseID, err := parseID("course", args[0])
			if err != nil {
				return err
			}
			sections, err := a.Store.Sections(ctx, courseID)
			if err != nil {
				return err
			}
			renderSections(cmd.OutOrStdout(), sections)
			return nil
		}),
	}

	var in models.SectionInput
	create := &cobra.Command{
		Use:   "create <course-id>",
		Short: "Add a section to a course",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			courseID, err := parseID("course", args[0])
			if err != nil {
				return err
			}
			sec, err := a.CRUD.CreateSection(ctx, courseID, in)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created section #%d %s\n", sec.ID, sec.Title)
			return nil
		}),
	}
	sectionFlags(create, &in)

	var upd models.SectionInput
	update := &cobra.Command{
		Use:   "update <course-id> <section-id>",
		Short: "Update a section; unset flags keep their current value",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			courseID, err := parseID("course", args[0])
			if err != nil {
				return err
			}
			sectionID, err := parseID("section", args[1])
			if err != nil {
				return err
			}
			current, err := a.Store.Section(ctx, courseID, sectionID)
			if err != nil {
				return err
			}
			merged := models.SectionInput{
				Title:       pick(cmd, "title", upd.Title, current.Title),
				Description: pick(cmd, "description", upd.Description, current.Description),
				OrderIndex:  current.OrderIndex,
			}
			if cmd.Flags().Changed("order") {
				merged.OrderIndex = upd.OrderIndex
			}
			sec, err := a.CRUD.UpdateSection(ctx, sectionID, merged)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated section #%d %s\n", sec.ID, sec.Title)
			return nil
		}),
	}
	sectionFlags(update, &upd)

	del := &cobra.Command{
		Use:   "delete <section-id>",
		Short: "Delete a section and its documents",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			id, err := parseID("section", args[0])
			if err != nil {
				return err
			}
			if err := a.CRUD.DeleteSection(ctx, id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted section #%d\n", id)
			return nil
		}),
	}

	cmd.AddCommand(list, create, update, del)
	return cmd
}

func sectionFlags(cmd *cobra.Command, in *models.SectionInput) {
	cmd.Flags().StringVar(&in.Title, "title", "", "section title")
	cmd.Flags().StringVar(&in.Description, "description", "", "section description")
	cmd.Flags().IntVar(&in.OrderIndex, "order", 0, "position within the course")
}

func (c *cli) newDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Upload and delete section documents",
	}

	var (
		title string
		order int
	)
	upload := &cobra.Command{
		Use:   "upload <section-id> <file>",
		Short: "Upload a document or audio file to a section",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			sectionID, err := parseID("section", args[0])
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
			name := filepath.Base(args[1])
			if title == "" {
				title = strings.TrimSuffix(name, filepath.Ext(name))
			}
			doc, err := a.CRUD.UploadDocument(ctx, sectionID, models.DocumentUpload{
				Title:      title,
				FileName:   name,
				OrderIndex: order,
				Content:    content,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Uploaded document #%d %s (%s)\n", doc.ID, doc.Title, doc.FileURL)
			return nil
		}),
	}
	upload.Flags().StringVar(&title, "title", "", "document title (default: file name)")
	upload.Flags().IntVar(&order, "order", 0, "position within the section")

	del := &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			id, err := parseID("document", args[0])
			if err != nil {
				return err
			}
			if err := a.CRUD.DeleteDocument(ctx, id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted document #%d\n", id)
			return nil
		}),
	}

	cmd.AddCommand(upload, del)
	return cmd
}
