package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/pkg/core"
)

var addCmd = &cobra.Command{
	Use:   "add [text...]",
	Short: "Create a note",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nb, err := openNotebook(cmd)
		if err != nil {
			return err
		}
		defer nb.Close()

		n, err := nb.Submit(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Note created: %s\n", n.ID)
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit [id] [text...]",
	Short: "Replace the text of a note",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nb, err := openNotebook(cmd)
		if err != nil {
			return err
		}
		defer nb.Close()

		ctx := cmd.Context()
		if err := nb.Load(ctx); err != nil {
			return err
		}
		target, ok := nb.Snapshot().Find(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrNotFound, args[0])
		}

		nb.BeginEdit(target)
		n, err := nb.Submit(ctx, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Note updated: %s\n", n.ID)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nb, err := openNotebook(cmd)
		if err != nil {
			return err
		}
		defer nb.Close()

		if err := nb.Delete(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("no note with id %s", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Note deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd, editCmd, deleteCmd)
}
