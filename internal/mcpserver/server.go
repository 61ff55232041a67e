// Package mcpserver serves the journal as MCP tools, over stdio for launched processes or
// streamable HTTP otherwise.
package mcpserver

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/echovault/echovault/internal/client"
)

type config struct {
	JournalServiceURL string
	LogLevel          zerolog.Level
	ServerName        string
	ServerVersion     string
	HTTPAddr          string
	ShutdownTimeout   time.Duration
	HTTPReadTimeout   time.Duration
	HTTPIdleTimeout   time.Duration
	RequestTimeout    time.Duration
}

func loadConfig(args []string) (*config, error) {
	cfg := &config{
		JournalServiceURL: getEnvOrDefault("JOURNAL_SERVICE_URL", "http://localhost:8080"),
		ServerName:        getEnvOrDefault("MCP_SERVER_NAME", "echovault-mcp"),
		ServerVersion:     getEnvOrDefault("MCP_SERVER_VERSION", "0.1.0"),
		HTTPAddr:          getEnvOrDefault("MCP_HTTP_ADDR", ":8081"),
		ShutdownTimeout:   parseDurationOrDefault("SHUTDOWN_TIMEOUT", "10s"),
		HTTPReadTimeout:   parseDurationOrDefault("HTTP_READ_TIMEOUT", "5s"),
		HTTPIdleTimeout:   parseDurationOrDefault("HTTP_IDLE_TIMEOUT", "120s"),
		RequestTimeout:    parseDurationOrDefault("JOURNAL_REQUEST_TIMEOUT", "2m"),
	}

	fs := flag.NewFlagSet("journal-mcp", flag.ContinueOnError)
	rawLogLevel := fs.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.JournalServiceURL, "journal-service-url", cfg.JournalServiceURL, "Base URL of the journal service")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "Listen address for the streamable HTTP transport")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.LogLevel = parseLogLevel(*rawLogLevel)
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(envKey, defaultValue string) time.Duration {
	if value := os.Getenv(envKey); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	d, _ := time.ParseDuration(defaultValue)
	return d
}

func parseLogLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewServer builds the MCP server with every journal tool registered.
func NewServer(name, version string, c *client.Client) (*server.MCPServer, error) {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(true))
	if err := NewJournalTools(c).RegisterTools(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the MCP server. args are the command line flags without the program name.
func Run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	// stdout carries the stdio protocol, so logs go to stderr.
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", cfg.ServerName).Logger()

	c := client.New(cfg.JournalServiceURL, client.WithTimeout(cfg.RequestTimeout))
	s, err := NewServer(cfg.ServerName, cfg.ServerVersion, c)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Failed to register journal tools")
		return err
	}

	if shouldUseStdio() {
		log.Info().Str("journal_service_url", cfg.JournalServiceURL).Msg("Starting journal MCP server (stdio transport)")
		return server.ServeStdio(s)
	}
	return serveHTTP(cfg, s)
}

func serveHTTP(cfg *config, s *server.MCPServer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	streamSrv := server.NewStreamableHTTPServer(
		s,
		server.WithEndpointPath("/mcp"),
		server.WithHeartbeatInterval(30*time.Second),
	)
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     streamSrv,
		ReadTimeout: cfg.HTTPReadTimeout,
		// No write deadline: responses may be long-lived streams.
		WriteTimeout: 0,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Starting journal MCP server (streamable HTTP)")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down journal MCP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during HTTP server shutdown")
	}
	if err := streamSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during MCP server shutdown")
	}
	return nil
}

// shouldUseStdio honours MCP_STDIO / MCP_HTTP, else picks stdio when stdin is not a terminal.
func shouldUseStdio() bool {
	if os.Getenv("MCP_STDIO") == "true" {
		return true
	}
	if os.Getenv("MCP_HTTP") == "true" {
		return false
	}
	if fileInfo, err := os.Stdin.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) == 0
	}
	return false
}
