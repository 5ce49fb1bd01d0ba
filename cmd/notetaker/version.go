package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of notetaker",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "notetaker version %s\n", strings.TrimSpace(notetaker.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
