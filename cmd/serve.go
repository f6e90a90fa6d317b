package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/semstore/internal/server"
	"github.com/ziadkadry99/semstore/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the store registry over HTTP",
	Long: `Starts an HTTP server exposing stores, documents, and queries as a REST
API. The working snapshot is loaded at startup and re-saved after every
mutating request.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default: config server.port)")
	serveCmd.Flags().Bool("allow-all", false, "allow all CORS origins (dev mode)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, codec, err := openRegistry(cfg)
	if err != nil {
		return err
	}

	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = cfg.Server.Port
	}
	allowAll, _ := cmd.Flags().GetBool("allow-all")

	srv := server.New(
		server.Config{Port: port, AllowAll: allowAll || cfg.Server.AllowAll},
		reg,
		func(r *store.Registry) error { return saveRegistry(cfg, codec, r) },
	)

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-done:
		return err
	case <-sig:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
