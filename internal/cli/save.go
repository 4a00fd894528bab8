package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pixelstack/pkg/imageio"
)

var (
	saveDims    string
	saveVirtual bool
)

var saveCmd = &cobra.Command{
	Use:   "save <src> <dst>",
	Short: "Copy a stack into the pixelstack directory format",
	Long: `Read every plane of the stack in <src> and write it to <dst> with a
stack.yaml manifest recording labels, display range and layout.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		requested, _, err := parseDims(saveDims)
		if err != nil {
			return err
		}
		s, dims, err := openStack(args[0], saveVirtual, requested, cfg)
		if err != nil {
			return err
		}
		verified, changed := dims.Verify(s.Size())
		if changed && requested.Size() > 0 {
			PrintWarning(fmt.Sprintf("dimensions %v do not match %s, using %v",
				dims, PrintCount(s.Size(), "plane", "planes"), verified))
		}

		startTime := time.Now()
		if err := imageio.Save(args[1], s, imageio.SaveOptions{
			Dimensions: verified,
			Workers:    cfg.Processing.NumCores,
		}); err != nil {
			return fmt.Errorf("failed to save stack: %w", err)
		}
		reportFailures(s)
		PrintSuccess(fmt.Sprintf("Saved %s to %s in %.2f seconds",
			PrintCount(s.Size(), "plane", "planes"), args[1], time.Since(startTime).Seconds()))
		return nil
	},
}

func init() {
	saveCmd.Flags().StringVar(&saveDims, "dims", "", "Hyperstack layout as channels,slices,frames")
	saveCmd.Flags().BoolVar(&saveVirtual, "virtual", false, "Read planes one at a time without loading the whole stack")
}
