/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/josephgoksu/loomboard/internal/config"
	"github.com/josephgoksu/loomboard/internal/logger"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose forces debug logging.
	verbose bool
	// version is the application version.
	version = "0.1.0"

	// v holds the merged flag, env and file settings.
	v = viper.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loomboard",
	Short: "Loomboard is a personal kanban board with an AI tool bridge.",
	Long: `Loomboard serves a four-column task board over HTTP and exposes the same
board to AI assistants through a Model Context Protocol server.

Run "loomboard serve" for the API, "loomboard mcp" for the stdio tool server
and "loomboard migrate" to import an export from the old browser app.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.loomboard/.loomboard.yaml, $HOME/.loomboard.yaml or ./.loomboard.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding the board database")

	_ = v.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

// loadConfig reads the configuration for a command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the process logger. The MCP server passes stderr since
// stdout carries the protocol.
func newLogger(cfg *config.Config, out *os.File) (*log.Logger, error) {
	l, err := logger.New(out, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return l, nil
}
