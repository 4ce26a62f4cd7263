package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	foldhttp "github.com/fyrsmithlabs/foldd/internal/http"
)

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the documents API over HTTP",
		Long: `Start the HTTP API. Documents opened through it live until they are closed
or the server stops.

Examples:
  foldd serve
  foldd serve --port 9292`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rt, err := newRuntime(ctx, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			if cmd.Flags().Changed("host") {
				rt.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				rt.cfg.Server.Port = port
			}

			srv, err := foldhttp.NewServer(rt.workspace, rt.logger.Underlying(), &foldhttp.Config{
				Host:      rt.cfg.Server.Host,
				Port:      rt.cfg.Server.Port,
				Telemetry: rt.telemetry,
			})
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			rt.logger.Info(ctx, "foldd serving",
				zap.String("addr", rt.cfg.Server.Addr()),
				zap.String("version", version))

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownTimeout.Duration())
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-errCh
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}
