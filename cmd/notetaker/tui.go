package main

import (
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker"
	"github.com/aretw0/notetaker/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Full-screen list and editor",
	Long: `Tui shows the live list above a form. Select a note and press enter to edit
it, n for a new note, d to delete; ctrl+s saves the form and esc cancels.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Errors are shown in the status line; log output would tear the screen.
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		nb, err := openNotebook(cmd, notetaker.WithLogger(quiet))
		if err != nil {
			return err
		}
		defer nb.Close()

		if err := nb.Start(ctx); err != nil {
			return err
		}
		if err := nb.Load(ctx); err != nil {
			return err
		}
		return tui.Run(ctx, nb)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
