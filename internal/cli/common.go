package cli

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pixelstack/pkg/config"
	"pixelstack/pkg/hyperstack"
	"pixelstack/pkg/imageio"
	"pixelstack/pkg/stack"
	"pixelstack/pkg/visualization"
)

// loadConfig reads the configuration named by --config, falling back to
// defaults when the file does not exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	return cfg, nil
}

// parseTriple parses "a,b,c" into three positive integers.
func parseTriple(s, what string) (a, b, c int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%s must be three comma separated numbers, got %q", what, s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 1 {
			return 0, 0, 0, fmt.Errorf("%s must be three positive numbers, got %q", what, s)
		}
		v[i] = n
	}
	return v[0], v[1], v[2], nil
}

// parseDims parses a --dims flag value; empty means none given.
func parseDims(s string) (hyperstack.Dimensions, bool, error) {
	if s == "" {
		return hyperstack.Dimensions{}, false, nil
	}
	c, z, t, err := parseTriple(s, "dimensions")
	if err != nil {
		return hyperstack.Dimensions{}, false, err
	}
	return hyperstack.Dimensions{Channels: c, Slices: z, Frames: t}, true, nil
}

// openStack opens dir as a saved stack when it holds a manifest, and as a
// directory of image files otherwise. Dimensions recorded in a manifest are
// returned; for file directories a non-native plane order from the
// configuration is applied to virtual stacks laid out as dims.
func openStack(dir string, virtual bool, dims hyperstack.Dimensions, cfg *config.Config) (stack.Stack, hyperstack.Dimensions, error) {
	if _, err := os.Stat(filepath.Join(dir, imageio.ManifestName)); err == nil {
		s, saved, err := imageio.Load(dir)
		if err != nil {
			return nil, hyperstack.Dimensions{}, err
		}
		if dims.Size() == 0 {
			dims = saved
		}
		return s, dims, nil
	}

	s, err := stack.Open(dir, imageio.FileOpener{}, stack.Options{
		Virtual:    virtual,
		Extensions: cfg.Virtual.Extensions,
	})
	if err != nil {
		return nil, hyperstack.Dimensions{}, err
	}
	if dims.Size() == 0 {
		dims = hyperstack.Flat(s.Size())
	}

	if vs, ok := s.(*stack.VirtualStack); ok {
		if cfg.Output.Verbose {
			vs.SetLogger(log.New(os.Stderr, "", log.LstdFlags))
		}
		order, err := hyperstack.ParseOrder(cfg.Virtual.Order)
		if err != nil {
			return nil, hyperstack.Dimensions{}, err
		}
		if order != hyperstack.CZT && dims.Size() == vs.Size() {
			table, err := hyperstack.OrderTable(order, dims)
			if err != nil {
				return nil, hyperstack.Dimensions{}, err
			}
			if err := vs.SetIndexTable(table); err != nil {
				return nil, hyperstack.Dimensions{}, err
			}
		}
	}
	return s, dims, nil
}

// newViewer wraps s in a configured viewer laid out as dims.
func newViewer(title string, s stack.Stack, dims hyperstack.Dimensions, cfg *config.Config) (*visualization.Viewer, error) {
	v := visualization.NewViewer(title, s)
	v.SetDimensions(dims.Channels, dims.Slices, dims.Frames)
	if err := v.Configure(cfg); err != nil {
		v.Close()
		return nil, err
	}
	if got := v.Dimensions(); got != dims && dims.Size() > 0 {
		PrintWarning(fmt.Sprintf("dimensions %v do not match %s, using %v",
			dims, PrintCount(s.Size(), "plane", "planes"), got))
	}
	return v, nil
}

// reportFailures warns about planes that fell back to a placeholder.
func reportFailures(s stack.Stack) {
	if vs, ok := s.(*stack.VirtualStack); ok {
		if n := vs.LoadFailures(); n > 0 {
			PrintWarning(fmt.Sprintf("%s could not be read", PrintCount(n, "plane", "planes")))
		}
	}
}
