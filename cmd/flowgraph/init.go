package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// runInit writes a settings.json seeded from the current configuration and
// any flags given.
func (c *cli) runInit(args []string) error {
	fs := c.newFlagSet("init")
	cfg := c.cfg
	force := fs.Bool("force", false, "overwrite an existing settings file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.Direction, "direction", cfg.Direction, "layout direction: TB or LR")
	fs.Float64Var(&cfg.NodeSpacing, "node-spacing", cfg.NodeSpacing, "distance between nodes of one rank")
	fs.Float64Var(&cfg.RankSpacing, "rank-spacing", cfg.RankSpacing, "distance between ranks")
	fs.Float64Var(&cfg.BranchSpacing, "branch-spacing", cfg.BranchSpacing, "horizontal offset of condition branches")
	fs.Float64Var(&cfg.ViewportWidth, "viewport-width", cfg.ViewportWidth, "center arranged flows in this width (0 disables)")
	fs.BoolVar(&cfg.StrictExpressions, "strict", cfg.StrictExpressions, "check expression syntax with the dialect parsers")
	fs.IntVar(&cfg.PoolSize, "pool-size", cfg.PoolSize, "concurrent validations in validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := cfg.engineConfig(); err != nil {
		return err
	}

	path := c.settings
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	fmt.Fprintf(c.stdout, "Config written to %s\n", path)
	return nil
}
