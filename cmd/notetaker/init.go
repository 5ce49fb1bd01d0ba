package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/notetaker/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a notes directory and a .notetaker.yaml next to it",
	Long: `Init writes a config file in the current directory so that later commands,
run from here or any subdirectory, use the same backend.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		path := filepath.Join(cwd, ".notetaker.yaml")
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		cfg := config.Config{Adapter: adapter, Dir: dir, Endpoint: endpoint, Mode: mode}
		if cfg.Adapter == "" {
			cfg.Adapter = "fs"
		}
		if cfg.Adapter == "fs" && cfg.Dir == "" {
			cfg.Dir = "notes"
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}
		if cfg.Adapter == "fs" {
			if err := os.MkdirAll(filepath.Join(cwd, cfg.Dir), 0755); err != nil {
				return err
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Initialized notetaker in", cwd)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
