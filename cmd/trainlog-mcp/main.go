// Command trainlog-mcp serves the trainlog MCP tools over stdio, reading data
// from a remote trainlog server through its REST API.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	mcpserver "github.com/mark3labs/mcp-go/server"

	trainmcp "github.com/meltforce/trainlog/internal/mcp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

type options struct {
	URL    string `env:"TRAINLOG_URL" envDefault:"http://trainlog"`
	APIKey string `env:"TRAINLOG_API_KEY"`
	UserID string `env:"TRAINLOG_USER_ID"`
}

func main() {
	// stdout carries the MCP protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var opts options
	if err := env.Parse(&opts); err != nil {
		log.Error("failed to parse environment", "error", err)
		os.Exit(1)
	}

	flag.StringVar(&opts.URL, "url", opts.URL, "base URL of the trainlog server")
	flag.StringVar(&opts.APIKey, "api-key", opts.APIKey, "API key for header identity")
	flag.StringVar(&opts.UserID, "user", opts.UserID, "user id sent as X-User-ID")
	flag.Parse()

	client := trainmcp.NewHTTPClient(opts.URL, opts.APIKey, opts.UserID)
	s := trainmcp.New(client, Version, log)

	log.Info("trainlog-mcp serving on stdio", "version", Version, "url", opts.URL)
	if err := mcpserver.ServeStdio(s); err != nil {
		log.Error("serve MCP", "error", err)
		os.Exit(1)
	}
}
