package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/media"
)

func (c *cli) newPreviewCmd() *cobra.Command {
	var (
		declared string
		title    string
		dir      string
	)
	cmd := &cobra.Command{
		Use:   "preview <file-url>",
		Short: "Preview a document inline, or download it",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			p := a.Media.Resolve(ctx, media.Request{URL: args[0], Title: title, Declared: declared})
			renderPreview(cmd.OutOrStdout(), p)
			if dir == "" {
				return nil
			}
			path, err := a.Media.Download(ctx, args[0], dir, "")
			if err != nil {
				return fmt.Errorf("download failed: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n", path)
			return nil
		}),
	}
	cmd.Flags().StringVar(&declared, "type", "", "declared file type or MIME type")
	cmd.Flags().StringVar(&title, "title", "", "title to show")
	cmd.Flags().StringVar(&dir, "download", "", "also download the file into this directory")
	return cmd
}
