package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"repertoire/internal/config"
	"repertoire/internal/storage/sqlite"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	yesFlag     bool
	historyFlag int

	dbCmd = &cobra.Command{
		Use:   "db",
		Short: "Manage the repertoire database",
	}

	dbInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Create the database and the root position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := openService(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			if err := svc.Shutdown(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database initialized at: %s (%s)\n", cfg.Storage.Path, cfg.Storage.Driver)
			return nil
		},
	}

	dbDeleteCmd = &cobra.Command{
		Use:   "delete",
		Short: "Delete the database and every opening in it",
		Args:  cobra.NoArgs,
		RunE:  runDBDelete,
	}

	dbStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show graph counts and recent reviews",
		Args:  cobra.NoArgs,
		RunE:  runDBStats,
	}
)

func init() {
	dbDeleteCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Do not ask for confirmation")
	dbStatsCmd.Flags().IntVar(&historyFlag, "history", 10, "Number of recent reviews to list")
	dbCmd.AddCommand(dbInitCmd, dbDeleteCmd, dbStatsCmd)
}

func runDBDelete(cmd *cobra.Command, _ []string) error {
	path := cfg.Storage.Path
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("nothing to delete at %s", path)
	}

	if !yesFlag {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("refusing to delete without a terminal, pass --yes")
		}
		ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete %s database at %s?", cfg.Storage.Driver, path))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			return nil
		}
	}

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		s, err := sqlite.NewStore(path, false, logger)
		if err != nil {
			return err
		}
		if err := s.DeleteDB(); err != nil {
			return err
		}
	case config.DriverBadger:
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to delete database directory: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Database deleted: %s\n", path)
	return nil
}

func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func runDBStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := openService(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer svc.Shutdown()

	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Storage\t%s (%s)\n", cfg.Storage.Path, cfg.Storage.Driver)
	fmt.Fprintf(w, "Positions\t%d\n", stats.Positions)
	fmt.Fprintf(w, "Moves\t%d\n", stats.Moves)
	fmt.Fprintf(w, "Openings\t%d\n", stats.Openings)
	fmt.Fprintf(w, "Reviews\t%d\n", stats.Reviews)
	if err := w.Flush(); err != nil {
		return err
	}

	if historyFlag <= 0 {
		return nil
	}
	recs, err := svc.Graph().Store().ReviewHistory(ctx, historyFlag)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REVIEWED\tSOURCE\tMOVE\tRESULT\tDIFFICULTY\tINTERVAL")
	for _, r := range recs {
		result := "wrong"
		if r.Correct {
			result = "correct"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%.2f\t%.1fd\n",
			r.ReviewedAt.Local().Format(time.DateTime), r.SourceID, r.Notation, result, r.Difficulty, r.IntervalDays)
	}
	return w.Flush()
}
