package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	exportDims     string
	exportPosition string
	exportAxis     string
	exportFormat   string
	exportOut      string
	exportVirtual  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Render every slice or frame of a stack to image files",
	Long: `Render the stack in <dir> at each slice (--axis z) or frame (--axis t) of the
given position and write one image per step into the output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if exportFormat == "" {
			exportFormat = cfg.Output.Format
		}
		requested, _, err := parseDims(exportDims)
		if err != nil {
			return err
		}
		c, z, t, err := parseTriple(exportPosition, "position")
		if err != nil {
			return err
		}

		s, dims, err := openStack(args[0], exportVirtual, requested, cfg)
		if err != nil {
			return err
		}
		viewer, err := newViewer(args[0], s, dims, cfg)
		if err != nil {
			return err
		}
		defer viewer.Close()
		viewer.SetPosition(c, z, t)

		if cfg.Output.Verbose {
			PrintInfo(fmt.Sprintf("Exporting %s along %s with %d workers...", viewer.Dimensions(), exportAxis, cfg.Processing.NumCores))
		}
		startTime := time.Now()
		if err := viewer.SaveSliceSequence(exportAxis, exportOut, exportFormat); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		reportFailures(s)
		PrintSuccess(fmt.Sprintf("Exported to %s in %.2f seconds", exportOut, time.Since(startTime).Seconds()))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDims, "dims", "", "Hyperstack layout as channels,slices,frames")
	exportCmd.Flags().StringVar(&exportPosition, "position", "1,1,1", "Fixed channel,slice,frame of the sequence")
	exportCmd.Flags().StringVar(&exportAxis, "axis", "z", "Axis to step along: z or t")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Image format: png or jpeg (default from config)")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "slices", "Output directory")
	exportCmd.Flags().BoolVar(&exportVirtual, "virtual", false, "Open as a virtual stack without loading every plane")
}
