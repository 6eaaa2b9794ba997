package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/edaloom/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the EDA web service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			c.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			c.Port = servePort
		}
		if err := c.Validate(); err != nil {
			return err
		}

		srv, err := web.New(c, logger)
		if err != nil {
			return err
		}
		httpSrv := &http.Server{
			Addr:              c.Addr(),
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			// leave room to write the page after a slow analysis
			WriteTimeout: c.RequestTimeout() + 30*time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server listening", zap.String("addr", c.Addr()))
			errCh <- httpSrv.ListenAndServe()
		}()
		fmt.Printf("✓ EDA agent listening on http://%s\n", c.Addr())

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serve: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		_ = logger.Sync()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 5000, "listen port (overrides config and PORT)")
}
