package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/router"
)

func (c *cli) newStudentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "List registered students",
	}
	var courseID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List all students, or with --course the course roster",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			if _, err := a.Session.RequireRole("students list", models.RoleAdmin); err != nil {
				return err
			}
			if courseID != 0 {
				roster, err := a.Store.Roster(ctx, courseID)
				if err != nil {
					return err
				}
				renderStudents(cmd.OutOrStdout(), roster, router.NoRoster)
				return nil
			}
			students, err := a.Store.Students(ctx)
			if err != nil {
				return err
			}
			renderStudents(cmd.OutOrStdout(), students, router.NoStudents)
			return nil
		}),
	}
	list.Flags().Int64Var(&courseID, "course", 0, "only students enrolled in this course")
	cmd.AddCommand(list)
	return cmd
}

func enrollmentArgs(args []string) (int64, int64, error) {
	studentID, err := parseID("student", args[0])
	if err != nil {
		return 0, 0, err
	}
	courseID, err := parseID("course", args[1])
	if err != nil {
		return 0, 0, err
	}
	return studentID, courseID, nil
}

func (c *cli) newEnrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enroll <student-id> <course-id>",
		Short: "Enroll a student in a course",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			studentID, courseID, err := enrollmentArgs(args)
			if err != nil {
				return err
			}
			if err := a.CRUD.Enroll(ctx, studentID, courseID); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Enrolled student #%d in course #%d\n", studentID, courseID)
			return nil
		}),
	}
}

func (c *cli) newUnenrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unenroll <student-id> <course-id>",
		Short: "Remove a student from a course",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			studentID, courseID, err := enrollmentArgs(args)
			if err != nil {
				return err
			}
			if err := a.CRUD.Unenroll(ctx, studentID, courseID); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed student #%d from course #%d\n", studentID, courseID)
			return nil
		}),
	}
}
