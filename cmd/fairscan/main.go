// Package main is the fairscan CLI entry point.
//
// Usage:
//
//	fairscan audit [flags] <model>
//	fairscan verify [flags] <model>
//	fairscan serve [flags]
//	fairscan watch [flags] [dir...]
//	fairscan history [flags] [id]
//	fairscan version
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/fairscan/internal/config"
	"github.com/hyperjump/fairscan/pkg/utils"
)

// version is set at build time via -ldflags.
var version = "dev"

const defaultConfigPath = "/usr/local/etc/fairscan/config.yaml"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "fairscan",
		Short: "Find discrimination patterns in naive Bayes classifiers",
		Long: "fairscan searches a naive Bayes model for the partial assignments where\n" +
			"observing sensitive features shifts the probability of a decision the most.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", defaultConfigPath, "config file path")
	pf.BoolVar(&g.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newAuditCmd(g),
		newVerifyCmd(g),
		newServeCmd(g),
		newWatchCmd(g),
		newHistoryCmd(g),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fairscan version %s\n", version)
		},
	}
}

// loadConfig loads config from path. When path is the default, config.yaml
// in the current directory wins if present. A missing default config yields
// the built-in defaults. Returns the config and the path it came from, empty
// when nothing was read.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and builds the logger for a subcommand.
func (g *globalFlags) setup(cli bool) (*config.Config, string, *zap.Logger, error) {
	cfg, path, err := loadConfig(g.configPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || g.debug
	var logger *zap.Logger
	if cli {
		logger, err = utils.NewCLILogger(debug)
	} else {
		logger, err = utils.NewLogger(debug)
	}
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, path, logger, nil
}
