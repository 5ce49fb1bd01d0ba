package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker"
	"github.com/aretw0/notetaker/internal/render"
	notelifecycle "github.com/aretw0/notetaker/pkg/adapters/lifecycle"
	"github.com/aretw0/notetaker/pkg/core"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the list, then every change made by any client",
	Long: `Watch subscribes to the push streams, prints the current list and then one
line per change until interrupted. Watching always uses subscription mode.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		nb, err := openNotebook(cmd, notetaker.WithMode(notetaker.ModeSubscription))
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
		return watch(ctx, nb, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watch prints the loaded list and then the change feed until ctx is done.
func watch(ctx context.Context, nb *notetaker.Notebook, out io.Writer) error {
	src := notelifecycle.NewSource(nb)
	if err := src.Start(ctx); err != nil {
		return err
	}

	printNotes(out, nb.Notes())
	for e := range src.Events() {
		change, ok := e.(core.Event)
		if !ok {
			continue
		}
		switch change.Type {
		case core.EventDelete:
			fmt.Fprintf(out, "- %s\n", change.ID)
		case core.EventUpdate:
			fmt.Fprintf(out, "~ %s  %s\n", change.ID, render.Summary(change.Note.Text))
		case core.EventLoad:
			fmt.Fprintf(out, "= %d notes\n", len(nb.Notes()))
		default:
			fmt.Fprintf(out, "+ %s  %s\n", change.ID, render.Summary(change.Note.Text))
		}
	}
	return nil
}
