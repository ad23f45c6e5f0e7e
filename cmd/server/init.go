package main

import (
	"fmt"
	"os"

	"containernerd-mcp-server/internal/config"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a .containernerd workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			} else if cwd, err := os.Getwd(); err == nil {
				root = cwd
			}
			if err := config.InitWorkspace(root); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "initialized workspace in %s\n", root)
			return err
		},
	}
}
