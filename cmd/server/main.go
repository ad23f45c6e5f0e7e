package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"containernerd-mcp-server/internal/config"

	"github.com/spf13/cobra"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath   string
	workspaceDir string
	noWorkspace  bool
}

func (o *globalOptions) load() (config.Config, string, error) {
	return config.LoadWithWorkspace(o.configPath, config.WorkspaceOptions{
		Disable:     o.noWorkspace,
		ExplicitDir: o.workspaceDir,
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Printf("containernerd: %v", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "containernerd",
		Short:         "Container-scoped tab deletion for Chrome browser contexts, served over MCP",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to an explicit config file layered over the workspace config")
	pf.StringVar(&opts.workspaceDir, "workspace-dir", "", "Use this directory as the workspace root instead of searching upward")
	pf.BoolVar(&opts.noWorkspace, "no-workspace", false, "Skip .containernerd workspace discovery")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newContainersCmd(opts))
	root.AddCommand(newDeleteCmd(opts))
	root.AddCommand(newInitCmd())
	return root
}
