package cmd

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/jpillora/overseer"
	"github.com/spf13/cobra"

	"github.com/benedict-erwin/geo-gateway/config"
	"github.com/benedict-erwin/geo-gateway/pkg/logger"
	"github.com/benedict-erwin/geo-gateway/pkg/utils"
)

var (
	cfgFile string
	cfg     *config.Config

	// set when running as an overseer child
	inheritedListener net.Listener
	gracefulShutdown  <-chan bool
)

var rootCmd = &cobra.Command{
	Use:               "geo-gateway",
	Short:             "GeoGateway HTTP Service",
	Long:              `GeoGateway proxies time, geocoding and IP lookups and issues entitlement tokens for verified payments`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("Failed to execute command")
		os.Exit(1)
	}
}

// ExecuteWithOverseer runs the root command inside an overseer child process
func ExecuteWithOverseer(state overseer.State) {
	inheritedListener = state.Listener
	gracefulShutdown = state.GracefulShutdown
	Execute()
}

// ListenAddress resolves the serve address before cobra runs, for overseer
func ListenAddress(args []string) (string, error) {
	c, err := config.Load(configFlag(args))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(":%d", c.App.Port), nil
}

// ServeRequested reports whether the first subcommand in raw arguments is serve
func ServeRequested(args []string) bool {
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--config" || arg == "-c":
			i++ // skip the value
		case strings.HasPrefix(arg, "-"):
		default:
			return arg == "serve"
		}
	}
	return false
}

// configFlag finds --config/-c in raw arguments
func configFlag(args []string) string {
	for i, arg := range args {
		switch {
		case (arg == "--config" || arg == "-c") && i+1 < len(args):
			return args[i+1]
		case len(arg) > len("--config=") && arg[:len("--config=")] == "--config=":
			return arg[len("--config="):]
		}
	}
	return ""
}

// loadConfig loads configuration and initializes the logger before any command runs
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// keep CLI output readable; servers log at the configured level
	level := c.App.LogLevel
	if cmd != serveCmd && cmd != devCmd {
		level = "warn"
	}
	logger.Init(level, c.App.Timezone, c.App.Env)

	if err := utils.InitTimezone(c.App.Timezone); err != nil {
		logger.Warn().Err(err).Msg("Timezone initialization failed, continuing with UTC")
	}

	cfg = c
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to a JSON config file (default ./.config.json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(devCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(maxmindCmd)
}
