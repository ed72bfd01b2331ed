package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/costargen/costargen/internal/bootstrap"
	log "github.com/costargen/costargen/internal/logging"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the costargen server",
	Long: `Start the COSTAR generation server.

Loads the configuration, opens the quota and usage stores, registers
every provider with a credential in the environment, and serves the
HTTP API until interrupted.`,
	Run: func(c *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override the configured listen port")
}

func runServe() {
	cfg, err := bootstrap.Load(configPath())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := app.Start(ctx); err != nil {
			log.Errorf("Server stopped: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Infof("Shutting down")
	case <-done:
	}
	app.Stop(ctx)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "config.yaml"
}
