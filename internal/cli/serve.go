package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/youruser/imagemerger/internal/api"
	"github.com/youruser/imagemerger/internal/config"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the merger HTTP API",
		Long: `Starts the HTTP API used by the mobile web view.

The API keeps one live session: posting a new base photo replaces it.`,
		Example: `  # Start server on PORT or 8080
  imagemerger serve

  # Start server on custom port
  imagemerger serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}

			srv := api.NewServer(cfg)
			// Load stickers at startup (best-effort)
			if err := srv.LoadStickers(); err != nil {
				slog.Warn("Failed to load sticker catalog", "err", err)
			}

			r := gin.Default()
			api.RegisterRoutes(r, srv)

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           otelhttp.NewHandler(r, "imagemerger"),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Merger API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default $PORT or 8080)")

	return cmd
}
