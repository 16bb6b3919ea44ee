package main

import (
	"fmt"
	"os"
	"path/filepath"

	"repertoire/internal/client"
	"repertoire/internal/processor"
	"repertoire/internal/repl"

	"github.com/spf13/cobra"
)

var (
	historyFileFlag string
	noColorFlag     bool
	serverFlag      string

	exploreCmd = &cobra.Command{
		Use:     "explore",
		Aliases: []string{"repl"},
		Short:   "Edit and train openings interactively",
		Args:    cobra.NoArgs,
		RunE:    runExplore,
	}
)

func init() {
	f := exploreCmd.Flags()
	f.StringVar(&historyFileFlag, "history-file", defaultHistoryFile(), "Readline history file")
	f.BoolVar(&noColorFlag, "no-color", false, "Disable ANSI colors")
	f.StringVar(&serverFlag, "server", "", "Use a running API server (http://host:port) instead of the local database")
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".repertoire_history")
}

func runExplore(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var exec repl.Executor
	if serverFlag != "" {
		c := client.New(serverFlag, logger)
		h, err := c.Health(ctx)
		if err != nil {
			return fmt.Errorf("server %s unreachable: %w", serverFlag, err)
		}
		logger.Debug("connected", "server", serverFlag, "storage", h.Storage, "openings", h.Openings)
		exec = c
	} else {
		svc, err := openService(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer svc.Shutdown()
		exec = processor.New(svc, logger)
	}

	rl, err := repl.NewReadline(historyFileFlag)
	if err != nil {
		return err
	}

	color := !noColorFlag && repl.ColorEnabled(os.Stdout)
	return repl.New(exec, rl, rl.Stdout(), color).Run(ctx)
}
