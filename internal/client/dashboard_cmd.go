package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/router"
)

func (c *cli) newDashboardCmd() *cobra.Command {
	var (
		tab      string
		courseID int64
	)
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard for the current session",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			if courseID != 0 && tab == "" {
				tab = string(router.TabEnrollments)
			}
			err := a.EnterDashboard(ctx)
			if err == nil && tab != "" {
				err = a.Router.SelectTab(ctx, router.Tab(tab))
			}
			if err == nil && courseID != 0 {
				err = a.Router.SelectCourseRoster(ctx, courseID)
			}
			renderView(cmd.OutOrStdout(), a.Router.View())
			if err != nil {
				return fmt.Errorf("dashboard: %w", err)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&tab, "tab", "", "admin tab: courses, students or enrollments")
	cmd.Flags().Int64Var(&courseID, "course", 0, "show the roster of this course (enrollments tab)")
	return cmd
}
