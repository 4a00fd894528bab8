package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pixelstack/pkg/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with default values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
		if err := config.CreateDefaultConfigFile(path); err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("Wrote default configuration to %s", path))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		PrintSection("Configuration")
		PrintLabelValue("Cores", fmt.Sprint(cfg.Processing.NumCores))
		PrintLabelValue("Virtual delay", cfg.Delay().String())
		PrintLabelValue("Fill pattern", fmt.Sprint(cfg.Virtual.FillPattern))
		PrintLabelValue("Plane order", cfg.Virtual.Order)
		PrintLabelValue("Extensions", fmt.Sprint(cfg.Virtual.Extensions))
		PrintLabelValue("Mode", cfg.Composite.Mode)
		PrintLabelValue("Palette", fmt.Sprint(cfg.Composite.Palette))
		PrintLabelValue("Format", cfg.Output.Format)
		PrintLabelValue("JPEG quality", fmt.Sprint(cfg.Output.JPEGQuality))
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
