package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dunamismax/voteframe/internal/compositor"
	"github.com/dunamismax/voteframe/internal/domain"
	"github.com/spf13/cobra"
)

func thumbsCmd() *cobra.Command {
	var (
		out           string
		width, height int
	)

	cmd := &cobra.Command{
		Use:   "thumbs",
		Short: "Write carousel thumbnails for every available frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := newResolver()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(out, 0o755); err != nil {
				return fmt.Errorf("create thumbnail dir: %w", err)
			}

			written := 0
			for _, id := range domain.Frames {
				thumb, err := resolver.Thumbnail(cmd.Context(), id, width, height)
				if err != nil {
					logger.WithField("frame", id).Warnf("skipping thumbnail: %v", err)
					continue
				}

				var buf bytes.Buffer
				if err := compositor.EncodePNG(&buf, thumb); err != nil {
					return err
				}
				path := filepath.Join(out, id.AssetName()+"-thumb.png")
				if err := writeFile(path, buf.Bytes()); err != nil {
					return err
				}
				written++
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			}
			if written == 0 {
				return fmt.Errorf("no frames available")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "thumbs", "output directory")
	cmd.Flags().IntVar(&width, "width", 96, "thumbnail width")
	cmd.Flags().IntVar(&height, "height", 112, "thumbnail height")
	return cmd
}
