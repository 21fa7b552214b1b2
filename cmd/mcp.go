/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/josephgoksu/loomboard/internal/logger"
	"github.com/josephgoksu/loomboard/internal/mcp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP tool server for AI assistants",
	Long: `Start a Model Context Protocol server over stdin/stdout. Every tool call is
forwarded to the board's token API at site_url (CONVEX_SITE_URL) using
mcp.api_token (MCP_API_TOKEN).

Tools: list_tasks, get_task, search_tasks, get_board_summary, create_task,
update_task, move_task, delete_task, get_active_task, set_active_task,
clear_active_task.

Example usage with an MCP client:
  loomboard mcp

The server will run until the client disconnects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("site-url", "", "base URL of the board API")
	_ = v.BindPFlag("site_url", mcpCmd.Flags().Lookup("site-url"))
}

func runMCPServer(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireMCP(); err != nil {
		return err
	}
	// Stdout is the protocol channel.
	l, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer logger.NewCrashReporter(afero.NewOsFs(), cfg.DataDir, version, l).HandlePanic("mcp")

	client := mcp.NewClient(cfg.SiteURL, cfg.MCP.APIToken, mcp.WithLogger(l))
	server := mcp.NewServer(client, version, l)

	l.WithField("site_url", cfg.SiteURL).Info("MCP server started on stdio")
	if err := mcp.ServeStdio(ctx, server); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
