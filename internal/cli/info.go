package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pixelstack/pkg/imageio"
)

var infoVirtual bool
var infoDims string

var infoCmd = &cobra.Command{
	Use:   "info <dir>",
	Short: "Describe the stack in a directory",
	Long: `Open a directory of image planes, or a stack written by "pixelstack save",
and print its size, sample kind, layout and slice labels.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		requested, _, err := parseDims(infoDims)
		if err != nil {
			return err
		}
		s, dims, err := openStack(args[0], infoVirtual, requested, cfg)
		if err != nil {
			return err
		}
		dims, _ = dims.Verify(s.Size())

		PrintSection("Stack")
		PrintLabelValue("Directory", args[0])
		PrintLabelValue("Planes", strconv.Itoa(s.Size()))
		PrintLabelValue("Size", fmt.Sprintf("%dx%d", s.Width(), s.Height()))
		PrintLabelValue("Kind", s.Kind().String())
		PrintLabelValue("Virtual", strconv.FormatBool(s.IsVirtual()))
		PrintLabelValue("Layout", dims.String())
		min, max := s.DisplayRange()
		PrintLabelValue("Display range", fmt.Sprintf("%g-%g", min, max))

		info := imageio.Describe(s)
		rows := make([][]string, 0, len(info.SliceInfo))
		for _, si := range info.SliceInfo {
			pos, _ := dims.IndexToPosition(si.Index)
			rows = append(rows, []string{strconv.Itoa(si.Index), pos.String(), si.Label, strconv.Itoa(si.BitDepth)})
		}
		PrintSection("Slices")
		PrintTable([]string{"#", "POSITION", "LABEL", "BITS"}, rows)
		return nil
	},
}

func init() {
	infoCmd.Flags().BoolVar(&infoVirtual, "virtual", false, "Open as a virtual stack without loading planes")
	infoCmd.Flags().StringVar(&infoDims, "dims", "", "Hyperstack layout as channels,slices,frames")
}
