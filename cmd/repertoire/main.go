// Package main is the repertoire command: API server, REPL and database tooling.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"repertoire/internal/config"
	"repertoire/internal/logging"

	"github.com/spf13/cobra"
)

var (
	configPath string
	driverFlag string
	pathFlag   string
	levelFlag  string

	cfg    *config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "repertoire",
		Short: "Build and drill a personal chess opening repertoire",
		Long: `repertoire keeps opening lines in a shared position graph and schedules
spaced-repetition reviews of the moves you are expected to play.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "repertoire.yaml", "Path to the YAML config file")
	pf.StringVar(&driverFlag, "driver", "", "Storage driver: sqlite or badger")
	pf.StringVar(&pathFlag, "path", "", "Database file (sqlite) or directory (badger)")
	pf.StringVar(&levelFlag, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, exploreCmd, dbCmd, openingCmd)
}

// loadConfig applies file, environment, then explicit flags
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		c.Storage.Driver = driverFlag
	}
	if flags.Changed("path") {
		c.Storage.Path = pathFlag
	}
	if flags.Changed("log-level") {
		c.Log.Level = levelFlag
	}
	if err := c.Validate(); err != nil {
		return err
	}

	l, err := logging.New(c.Log, os.Stderr)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	slog.SetDefault(l)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
