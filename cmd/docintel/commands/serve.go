package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/docintel-go/internal/agent"
	"github.com/54b3r/docintel-go/internal/ingestion"
	"github.com/54b3r/docintel-go/internal/logging"
	"github.com/54b3r/docintel-go/internal/server"
	"github.com/54b3r/docintel-go/internal/tracing"
	"github.com/54b3r/docintel-go/internal/version"
)

// NewServeCmd constructs the `docintel serve` command, which starts the HTTP
// server exposing ingestion, queries and session management.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var watchDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docintel HTTP server",
		Long: `Start the docintel HTTP server on localhost.

The server exposes a JSON/SSE API for uploading documents, asking questions,
summarizing and comparing text, and managing sessions. With --watch-dir, files
dropped into the directory are ingested automatically.

Examples:
  docintel serve
  docintel serve --port 9090
  docintel serve --watch-dir ./inbox
  MODEL_PROVIDER=azure INDEX_BACKEND=qdrant docintel serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in and a no-op if keys are absent.
			tcfg := tracing.ConfigFromEnv()
			tcfg.Release = version.Version
			handler, flush, ok := tracing.New(tcfg)
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			rt, err := buildService(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer rt.Close()

			maxBytes := getEnvInt64("UPLOAD_MAX_BYTES", defaultUploadMaxBytes)

			if watchDir != "" {
				w, err := ingestion.NewWatcher(watchDir, maxBytes, ingestFunc(rt.agent))
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				defer w.Close()
				go w.Run(ctx)
			}

			srv, err := server.New(rt.agent, &server.Config{
				Host:           host,
				Port:           port,
				Logger:         log,
				Pingers:        buildPingers(rt),
				APIKey:         os.Getenv("DOCINTEL_API_KEY"),
				UploadMaxBytes: maxBytes,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().StringVar(&watchDir, "watch-dir", "", "Directory whose new files are ingested automatically")

	return cmd
}

// ingestFunc adapts Agent.Ingest to the watcher callback. Failed documents
// are reported as errors so the watcher logs them.
func ingestFunc(a *agent.Agent) ingestion.IngestFunc {
	return func(ctx context.Context, filename string, data []byte) error {
		out := a.Ingest(ctx, agent.File{Name: filename, Data: data})
		if out.Error != "" {
			return fmt.Errorf("%s: %s", filename, out.Error)
		}
		logging.FromContext(ctx).Info("watcher: document ingested",
			slog.String("document_id", out.DocumentID),
			slog.Bool("reused", out.Reused),
			slog.Int("chunks", out.Chunks),
		)
		return nil
	}
}
