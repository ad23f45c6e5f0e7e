package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"

	mcpserver "containernerd-mcp-server/internal/mcp"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var ssePort int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio, or SSE when a port is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, wsDir, err := opts.load()
			if err != nil {
				return err
			}
			if ssePort != 0 {
				cfg.MCP.SSEPort = ssePort
			}

			// Stderr interferes with the MCP protocol in stdio mode.
			if cfg.MCP.SSEPort == 0 && cfg.Server.LogFile != "" {
				logFile, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err == nil {
					log.SetOutput(logFile)
					defer logFile.Close()
				} else {
					log.SetOutput(io.Discard)
				}
			}
			if wsDir != "" {
				log.Printf("using workspace %s", wsDir)
			}

			ctx := cmd.Context()
			rt, err := newRuntime(cfg, "serve")
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			if cfg.Browser.AutoStart {
				if err := rt.connect(ctx); err != nil {
					return err
				}
			} else {
				log.Printf("browser auto-start disabled; use launch-browser to attach later")
			}

			server, err := mcpserver.NewServer(cfg, rt.browser, rt.registry, rt.deleter, rt.engine)
			if err != nil {
				return err
			}

			var startErr error
			if cfg.MCP.SSEPort > 0 {
				log.Printf("starting ContainerNERD MCP SSE server on port %d", cfg.MCP.SSEPort)
				startErr = server.StartSSE(ctx, cfg.MCP.SSEPort)
			} else {
				log.Printf("starting ContainerNERD MCP stdio server")
				startErr = server.Start(ctx)
			}
			if startErr != nil && !errors.Is(startErr, context.Canceled) {
				return startErr
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ssePort, "sse-port", 0, "SSE port override (falls back to config)")
	return cmd
}
