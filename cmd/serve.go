package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/benedict-erwin/geo-gateway/pkg/logger"
	"github.com/benedict-erwin/geo-gateway/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP Server",
	Long:  `Starts the GeoGateway HTTP Server under overseer; SIGUSR2 restarts it without dropping connections`,
	RunE:  runServer,
}

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Start HTTP Server without overseer",
	Long:  `Starts the GeoGateway HTTP Server in the foreground, for hot reload tools`,
	RunE:  runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	log := logger.WithScope("serveCmd")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if gracefulShutdown != nil {
		go func() {
			select {
			case <-gracefulShutdown:
				stop()
			case <-ctx.Done():
			}
		}()
	}

	app, err := server.New(cfg)
	if err != nil {
		return err
	}

	// SIGHUP picks up replaced GeoIP files without waiting for the file check
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				app.ReloadGeoIP()
			case <-ctx.Done():
				return
			}
		}
	}()

	l := inheritedListener
	if l == nil {
		l, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.App.Port))
		if err != nil {
			app.Close()
			return fmt.Errorf("failed to listen: %w", err)
		}
	}

	log.Info().
		Str("env", cfg.App.Env).
		Str("version", cfg.App.Version).
		Bool("overseer", inheritedListener != nil).
		Msg("GeoGateway starting")
	return app.Serve(ctx, l)
}
