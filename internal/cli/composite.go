package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pixelstack/pkg/composite"
)

var (
	compositeDims     string
	compositePosition string
	compositeMode     string
	compositeActive   string
	compositeOut      string
	compositeVirtual  bool
)

var compositeCmd = &cobra.Command{
	Use:   "composite <dir>",
	Short: "Render one position of a stack to an image file",
	Long: `Lay the stack in <dir> out as a hyperstack and render the plane or channel
composite at one position. The output format follows the file extension
(.png, .jpg or .gif).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if compositeMode != "" {
			cfg.Composite.Mode = compositeMode
		}
		requested, _, err := parseDims(compositeDims)
		if err != nil {
			return err
		}
		c, z, t, err := parseTriple(compositePosition, "position")
		if err != nil {
			return err
		}

		s, dims, err := openStack(args[0], compositeVirtual, requested, cfg)
		if err != nil {
			return err
		}
		viewer, err := newViewer(args[0], s, dims, cfg)
		if err != nil {
			return err
		}
		defer viewer.Close()

		if err := applyActive(viewer.Compositor(), compositeActive); err != nil {
			return err
		}
		viewer.SetPosition(c, z, t)

		startTime := time.Now()
		if err := viewer.SaveSnapshot(compositeOut); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
		reportFailures(s)
		PrintSuccess(fmt.Sprintf("Rendered %s (%s) to %s in %.2f seconds",
			viewer.Position(), viewer.Mode(), compositeOut, time.Since(startTime).Seconds()))
		return nil
	},
}

// applyActive sets the blended channels from a string of 0s and 1s, one per
// channel. An empty string leaves every channel active.
func applyActive(c *composite.Compositor, active string) error {
	if active == "" {
		return nil
	}
	if c == nil {
		return fmt.Errorf("--active needs more than one channel")
	}
	for i, r := range active {
		if r != '0' && r != '1' {
			return fmt.Errorf("--active must consist of 0 and 1, got %q", active)
		}
		if err := c.SetActive(i+1, r == '1'); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	compositeCmd.Flags().StringVar(&compositeDims, "dims", "", "Hyperstack layout as channels,slices,frames")
	compositeCmd.Flags().StringVar(&compositePosition, "position", "1,1,1", "Position to render as channel,slice,frame")
	compositeCmd.Flags().StringVar(&compositeMode, "mode", "", "Display mode: composite, color or grayscale (default from config)")
	compositeCmd.Flags().StringVar(&compositeActive, "active", "", "Blended channels as a string of 0s and 1s, e.g. 101")
	compositeCmd.Flags().StringVarP(&compositeOut, "output", "o", "composite.png", "Output image file")
	compositeCmd.Flags().BoolVar(&compositeVirtual, "virtual", false, "Open as a virtual stack without loading every plane")
}
