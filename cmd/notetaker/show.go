package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/internal/render"
	"github.com/aretw0/notetaker/pkg/core"
)

var showHTML bool

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nb, err := openNotebook(cmd)
		if err != nil {
			return err
		}
		defer nb.Close()

		if err := nb.Load(cmd.Context()); err != nil {
			return err
		}
		n, ok := nb.Snapshot().Find(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrNotFound, args[0])
		}
		return showNote(cmd.OutOrStdout(), n, showHTML)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showHTML, "html", false, "Render the note as HTML")
}

func showNote(w io.Writer, n core.Note, asHTML bool) error {
	if asHTML {
		return render.HTML(w, n.Text)
	}
	_, err := fmt.Fprintln(w, n.Text)
	return err
}
