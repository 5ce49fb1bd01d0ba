package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker"
	"github.com/aretw0/notetaker/internal/config"
)

var (
	verbose    bool
	configPath string
	adapter    string
	dir        string
	endpoint   string
	token      string
	mode       string

	fileConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notetaker",
	Short: "A shared note list kept in sync across clients",
	Long: `notetaker mirrors a list of notes held by a remote service.
The backend is a shared directory of Markdown files, an HTTP note service or
an in-memory store; changes by other clients arrive as push events.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fileConfig = cfg

		level := slog.LevelInfo
		if verbose || (cfg != nil && cfg.Verbose) {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)

		if cfg != nil {
			logger.Debug("config loaded", "path", cfg.Path)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&configPath, "config", "", "Config file (default: nearest .notetaker.yaml/.yml/.toml)")
	flags.StringVar(&adapter, "adapter", "", "Backend: fs, remote or memory")
	flags.StringVarP(&dir, "dir", "d", "", "Notes directory (fs adapter)")
	flags.StringVar(&endpoint, "endpoint", "", "Note service URL (remote adapter)")
	flags.StringVar(&token, "token", "", "Bearer token (remote adapter, default $NOTETAKER_TOKEN)")
	flags.StringVar(&mode, "mode", "", "Authoritative channel: subscription or direct")
}

// loadConfig reads --config, or the nearest config file above the working
// directory. No file is not an error.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.Discover(wd)
}

// notebookOptions merges, in increasing precedence, the config file, the
// environment and the command line flags.
func notebookOptions(cmd *cobra.Command) ([]notetaker.Option, error) {
	var opts []notetaker.Option
	if fileConfig != nil {
		opts = append(opts, fileConfig.Options()...)
	}
	if env := os.Getenv("NOTETAKER_TOKEN"); env != "" {
		opts = append(opts, notetaker.WithToken(env))
	}

	flags := cmd.Flags()
	if flags.Changed("adapter") {
		opts = append(opts, notetaker.WithAdapter(adapter))
	}
	if flags.Changed("dir") {
		opts = append(opts, notetaker.WithDir(dir))
	}
	if flags.Changed("endpoint") {
		opts = append(opts, notetaker.WithEndpoint(endpoint))
	}
	if flags.Changed("token") {
		opts = append(opts, notetaker.WithToken(token))
	}
	if flags.Changed("mode") {
		m, err := notetaker.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, notetaker.WithMode(m))
	}

	return append(opts, notetaker.WithLogger(slog.Default())), nil
}

func openNotebook(cmd *cobra.Command, extra ...notetaker.Option) (*notetaker.Notebook, error) {
	opts, err := notebookOptions(cmd)
	if err != nil {
		return nil, err
	}
	nb, err := notetaker.New(append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open notebook: %w", err)
	}
	return nb, nil
}
