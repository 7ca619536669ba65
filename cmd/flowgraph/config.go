package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rendis/flowgraph/internal/engine"
	"github.com/rendis/flowgraph/internal/layout"
)

// Config holds all flowgraph CLI configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	LogLevel          string  `json:"log_level"`
	NodeSpacing       float64 `json:"node_spacing"`
	RankSpacing       float64 `json:"rank_spacing"`
	BranchSpacing     float64 `json:"branch_spacing"`
	Direction         string  `json:"direction"`
	ViewportWidth     float64 `json:"viewport_width"`
	StrictExpressions bool    `json:"strict_expressions"`
	PoolSize          int     `json:"pool_size"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:      "info",
		NodeSpacing:   layout.DefaultNodeSpacing,
		RankSpacing:   layout.DefaultRankSpacing,
		BranchSpacing: layout.DefaultBranchSpacing,
		Direction:     string(layout.TopToBottom),
		PoolSize:      engine.DefaultPoolSize,
	}
}

func flowgraphDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowgraph"
	}
	return filepath.Join(home, ".flowgraph")
}

func settingsPath() string {
	return filepath.Join(flowgraphDir(), "settings.json")
}

func loadConfig() Config {
	return loadConfigFrom(settingsPath(), os.Getenv)
}

// loadConfigFrom layers the settings file at path and then the environment
// seen through getenv over the defaults. A missing or broken file is ignored.
func loadConfigFrom(path string, getenv func(string) string) Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := getenv("FLOWGRAPH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("FLOWGRAPH_DIRECTION"); v != "" {
		cfg.Direction = v
	}
	envFloat(getenv, "FLOWGRAPH_NODE_SPACING", &cfg.NodeSpacing)
	envFloat(getenv, "FLOWGRAPH_RANK_SPACING", &cfg.RankSpacing)
	envFloat(getenv, "FLOWGRAPH_BRANCH_SPACING", &cfg.BranchSpacing)
	envFloat(getenv, "FLOWGRAPH_VIEWPORT_WIDTH", &cfg.ViewportWidth)
	if v := getenv("FLOWGRAPH_STRICT_EXPRESSIONS"); v != "" {
		cfg.StrictExpressions = v == "true" || v == "1"
	}
	if v := getenv("FLOWGRAPH_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}

	return cfg
}

func envFloat(getenv func(string) string, key string, dst *float64) {
	if v := getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// layoutOptions converts the layout fields. An unknown direction is an error.
func (c Config) layoutOptions() (layout.Options, error) {
	dir, ok := layout.ParseDirection(strings.ToUpper(strings.TrimSpace(c.Direction)))
	if !ok {
		return layout.Options{}, fmt.Errorf("invalid direction %q (want TB or LR)", c.Direction)
	}
	return layout.Options{
		Direction:     dir,
		NodeSpacing:   c.NodeSpacing,
		RankSpacing:   c.RankSpacing,
		BranchSpacing: c.BranchSpacing,
	}, nil
}

func (c Config) engineConfig() (engine.Config, error) {
	opts, err := c.layoutOptions()
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Layout:            opts,
		ViewportWidth:     c.ViewportWidth,
		StrictExpressions: c.StrictExpressions,
		PoolSize:          c.PoolSize,
	}, nil
}
