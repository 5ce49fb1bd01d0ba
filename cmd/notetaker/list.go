package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/internal/filter"
	"github.com/aretw0/notetaker/internal/render"
	"github.com/aretw0/notetaker/pkg/core"
)

var (
	listJSON  bool
	listWhere string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all notes",
	Long: `List the notes in service order.

--where takes an expression over id, text, index, lines and words:

  notetaker list --where 'text contains "milk" && lines < 3'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := filter.Compile(listWhere)
		if err != nil {
			return err
		}

		nb, err := openNotebook(cmd)
		if err != nil {
			return err
		}
		defer nb.Close()

		if err := nb.Load(cmd.Context()); err != nil {
			return err
		}

		notes, err := f.Apply(nb.Notes())
		if err != nil {
			return err
		}

		if listJSON {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(notes)
		}
		printNotes(cmd.OutOrStdout(), notes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&listWhere, "where", "", "Filter expression")
}

// printNotes writes one line per note: the ID and a summary of its text.
func printNotes(w io.Writer, notes []core.Note) {
	for _, n := range notes {
		fmt.Fprintf(w, "%s  %s\n", n.ID, render.Summary(n.Text))
	}
}
