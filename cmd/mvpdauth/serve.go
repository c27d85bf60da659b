package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mvpdauth/internal/credentials"
	"mvpdauth/internal/server"
)

func newServeCmd(g *globals) *cobra.Command {
	var corsOrigin string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the token exchange over a local HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(g.cfg, credentials.NoPrompt{})
			if err != nil {
				return err
			}
			defer rt.Close()

			opts := []server.Option{server.WithGatherer(rt.registry)}
			if p, ok := rt.backend.(server.Pinger); ok {
				opts = append(opts, server.WithPinger(p))
			}
			if corsOrigin != "" {
				opts = append(opts, server.WithCORSOrigin(corsOrigin))
			}
			srv := server.NewServer(rt, rt.cache, opts...)
			defer srv.Close()

			httpServer := &http.Server{
				Addr:              g.cfg.ListenAddr,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("mvpdauth listening on %s", g.cfg.ListenAddr)
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			log.Println("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("shutdown error: %v", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&corsOrigin, "cors-origin", os.Getenv("CORS_ORIGIN"), "allowed browser origin for the API")
	return cmd
}
