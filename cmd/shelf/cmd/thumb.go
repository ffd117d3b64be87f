package cmd

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

var (
	thumbOut     string
	thumbTimeout time.Duration
)

var thumbCmd = &cobra.Command{
	Use:   "thumb <path>",
	Short: "Render the thumbnail of a file or item folder",
	Long: `Render the thumbnail of a file or item folder and write it as an image.

Folders use their numbered image, their first image, the configured
empty-folder image, or a folder icon, in that order.

Examples:
  shelf thumb ~/library/item1
  shelf thumb ~/library/item1/cover.jpg -o /tmp/cover-thumb.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		tile := lib.Track(path)
		defer lib.Forget(tile)

		img, ok := lib.Thumbnail(tile)
		if !ok {
			img, err = awaitThumbnail(tile.ID, thumbTimeout)
			if err != nil {
				return err
			}
		}

		out := thumbOut
		if out == "" {
			out = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "-thumb.png"
		}
		if err := imaging.Save(img, out); err != nil {
			return fmt.Errorf("write thumbnail: %w", err)
		}

		b := img.Bounds()
		fmt.Printf("%s -> %s (%dx%d)\n", path, out, b.Dx(), b.Dy())
		return nil
	},
}

func awaitThumbnail(id uint64, timeout time.Duration) (image.Image, error) {
	deadline := time.After(timeout)
	for {
		select {
		case c := <-lib.Completions():
			if c.Tile.ID != id {
				continue
			}
			if c.Err != nil {
				fmt.Printf("Warning: %v\n", c.Err)
			}
			return c.Image, nil
		case <-deadline:
			return nil, fmt.Errorf("thumbnail not ready after %s", timeout)
		}
	}
}

func init() {
	thumbCmd.Flags().StringVarP(&thumbOut, "output", "o", "", "output image file (default <name>-thumb.png)")
	thumbCmd.Flags().DurationVar(&thumbTimeout, "timeout", 30*time.Second, "how long to wait for generation")
	rootCmd.AddCommand(thumbCmd)
}
