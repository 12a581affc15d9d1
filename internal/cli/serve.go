package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/glim/internal/api"
	"github.com/sprite-ai/glim/internal/parse"
	"github.com/sprite-ai/glim/internal/source"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing the glim analysis engine.

Endpoints:
  GET  /health          Health check
  POST /api/galaxy      File heatmap for a diff
  POST /api/structure   Changed symbols of one file
  POST /api/logic       Line diff of one symbol
  GET  /api/ws          WebSocket for interactive review sessions`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "127.0.0.1", "address to listen on")
	serveCmd.Flags().IntP("port", "p", 6142, "port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	port, _ := cmd.Flags().GetInt("port")

	root, _ := source.RepoRoot(".")
	e, err := setup(cmd, root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.close()

	listen := fmt.Sprintf("%s:%d", addr, port)
	srv := api.New(listen, api.Config{
		Engine: e.cfg.EngineOptions(),
		Source: e.sourceOptions(),
		Parser: parse.New(),
		Log:    e.log,
	})
	fmt.Fprintf(cmd.ErrOrStderr(), "glim API listening on http://%s\n", listen)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-cmd.Context().Done():
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
