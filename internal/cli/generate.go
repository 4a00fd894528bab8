package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pixelstack/pkg/hyperstack"
	"pixelstack/pkg/imageio"
	"pixelstack/pkg/stack"
)

var (
	generateWidth  int
	generateHeight int
	generateBits   int
	generateSize   int
	generateDims   string
	generateOut    string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthesized test stack",
	Long: `Synthesize a virtual stack of test planes and save it. With --dims every
plane is labelled with its channel, slice and frame.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dims, hasDims, err := parseDims(generateDims)
		if err != nil {
			return err
		}
		size := generateSize
		if hasDims {
			size = dims.Size()
		} else {
			dims = hyperstack.Flat(size)
		}

		s, err := stack.NewGeneratedStack(generateWidth, generateHeight, generateBits, size, stack.GeneratorOptions{
			Fill:  cfg.Virtual.FillPattern,
			Delay: cfg.Delay(),
		})
		if err != nil {
			return err
		}
		if hasDims {
			viewer, err := newViewer(generateOut, s, dims, cfg)
			if err != nil {
				return err
			}
			defer viewer.Close()
		}

		if cfg.Output.Verbose {
			PrintInfo(fmt.Sprintf("Generating %s of %dx%d at %d bits...",
				PrintCount(size, "plane", "planes"), generateWidth, generateHeight, generateBits))
		}
		startTime := time.Now()
		if err := imageio.Save(generateOut, s, imageio.SaveOptions{
			Dimensions: dims,
			Workers:    cfg.Processing.NumCores,
		}); err != nil {
			return fmt.Errorf("failed to save stack: %w", err)
		}
		PrintSuccess(fmt.Sprintf("Wrote %s to %s in %.2f seconds",
			dims, generateOut, time.Since(startTime).Seconds()))
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVar(&generateWidth, "width", 256, "Plane width in pixels")
	generateCmd.Flags().IntVar(&generateHeight, "height", 256, "Plane height in pixels")
	generateCmd.Flags().IntVar(&generateBits, "bits", 8, "Bit depth: 8, 16, 24 or 32")
	generateCmd.Flags().IntVar(&generateSize, "size", 10, "Number of planes when --dims is not given")
	generateCmd.Flags().StringVar(&generateDims, "dims", "", "Hyperstack layout as channels,slices,frames")
	generateCmd.Flags().StringVarP(&generateOut, "output", "o", "generated", "Output directory")
}
