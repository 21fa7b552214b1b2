package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	log "github.com/sirupsen/logrus"
)

// ServerName is the implementation name reported to MCP clients.
const ServerName = "loomboard"

// NewServer builds an MCP server exposing the board tools.
func NewServer(client *Client, version string, logger log.FieldLogger) *mcpsdk.Server {
	opts := &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			logger.Info("MCP connection established")
		},
	}
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: version}, opts)
	NewTools(client).Register(server)
	return server
}

// ServeStdio runs server on stdin/stdout until the client disconnects or
// ctx is cancelled. Stdout carries JSON-RPC only.
func ServeStdio(ctx context.Context, server *mcpsdk.Server) error {
	return server.Run(ctx, mcpsdk.NewStdioTransport())
}
