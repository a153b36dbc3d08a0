package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-covid/internal/logger"
	"github.com/joeblew999/plat-covid/internal/server"
)

// Options defines all CLI flags and env vars for the dashboard server.
// Flags: --host, --port, --data-dir, --web-dir, --start-date, --log-level,
// --redis-url, --session-ttl
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, ...
type Options struct {
	Host       string        `doc:"Host to bind to" default:"0.0.0.0"`
	Port       int           `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir    string        `doc:"Directory for dataset overrides and the DuckDB file" default:".data"`
	WebDir     string        `doc:"Path to web/ directory" default:"web"`
	StartDate  string        `doc:"First day of the date range slider (YYYY-MM-DD)" default:"2020-01-23"`
	LogLevel   string        `doc:"Log level: debug, info, warn, error" default:"info"`
	RedisURL   string        `doc:"Redis URL for session persistence, e.g. redis://localhost:6379/0 (empty keeps sessions in memory)"`
	SessionTTL time.Duration `doc:"How long idle sessions are kept" default:"24h"`
}

func newServer(opts *Options, log *zap.Logger) (*server.Server, error) {
	return server.New(server.Config{
		Host:       opts.Host,
		Port:       fmt.Sprintf("%d", opts.Port),
		DataDir:    opts.DataDir,
		WebDir:     opts.WebDir,
		StartDate:  opts.StartDate,
		RedisURL:   opts.RedisURL,
		SessionTTL: opts.SessionTTL,
		Logger:     log,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		log, err := logger.New(opts.LogLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
			os.Exit(1)
		}

		var srv *server.Server
		httpServer := &http.Server{Addr: fmt.Sprintf("%s:%d", opts.Host, opts.Port)}
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			defer log.Sync()

			srv, err = newServer(opts, log)
			if err != nil {
				log.Fatal("Failed to start server", zap.Error(err))
			}
			defer srv.Close()
			httpServer.Handler = srv

			go srv.PruneSessions(ctx, time.Minute, opts.SessionTTL)

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-covid dashboard starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Map:     %s/\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("Server error", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			cancel()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("Shutdown error", zap.Error(err))
			}
		})
	})

	cli.Root().Use = "covidmap"
	cli.Root().Short = "COVID-19 cluster map dashboard for Singapore"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts, zap.NewNop())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Run()
}
