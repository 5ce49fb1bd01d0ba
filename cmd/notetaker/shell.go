package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker"
	"github.com/aretw0/notetaker/pkg/core"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Edit notes interactively",
	Long: `Shell keeps the list open and live. Plain lines are submitted from the form:
they create a note, or update the one being edited.

  :list            print the list
  :edit <id>       load a note into the form
  :cancel          leave edit mode
  :delete <id>     delete a note
  :quit            exit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		nb, err := openNotebook(cmd)
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
		return runShell(ctx, nb, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

var errQuit = errors.New("quit")

// runShell reads commands from in until EOF, :quit or cancellation.
// Failed commands are reported and the shell keeps going.
func runShell(ctx context.Context, nb *notetaker.Notebook, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines, readErr := readLines(ctx, in)
	for {
		fmt.Fprintf(out, "[%s]> ", nb.Snapshot().SubmitLabel())

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return <-readErr
			}
			line = l
		}

		err := shellLine(ctx, nb, strings.TrimSpace(line), out)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

// readLines scans in on its own goroutine, one line per receive, so that a
// blocked read does not hold up cancellation.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

func shellLine(ctx context.Context, nb *notetaker.Notebook, line string, out io.Writer) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, ":") {
		n, err := nb.Submit(ctx, line)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "saved %s\n", n.ID)
		return nil
	}

	command, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "list", "ls":
		printNotes(out, nb.Notes())
	case "edit":
		target, ok := nb.Snapshot().Find(arg)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrNotFound, arg)
		}
		nb.BeginEdit(target)
		fmt.Fprintf(out, "editing %s: %s\n", target.ID, target.Text)
	case "cancel":
		nb.CancelEdit()
	case "delete", "rm":
		if err := nb.Delete(ctx, arg); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", arg)
	case "quit", "q":
		return errQuit
	default:
		return fmt.Errorf("unknown command :%s", command)
	}
	return nil
}
