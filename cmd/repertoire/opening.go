package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"repertoire/internal/core"

	"github.com/spf13/cobra"
)

var (
	openingCmd = &cobra.Command{
		Use:     "opening",
		Aliases: []string{"openings"},
		Short:   "List, add and remove openings",
	}

	openingListCmd = &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List openings by side",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := openService(ctx, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer svc.Shutdown()

			byColor, err := svc.Openings(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCOLOR\tNAME")
			for _, o := range append(byColor.White, byColor.Black...) {
				fmt.Fprintf(w, "%d\t%s\t%s\n", o.ID, o.Color.Name(), o.Name)
			}
			return w.Flush()
		},
	}

	openingAddCmd = &cobra.Command{
		Use:   "add <white|black> <name>",
		Short: "Declare an opening",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			color, err := core.ParseColor(strings.ToLower(args[0]))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := openService(ctx, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer svc.Shutdown()

			o, created, err := svc.CreateOpening(ctx, strings.Join(args[1:], " "), color)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "Opening already exists: %d %s\n", o.ID, o.Name)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opening created: %d %s (%s)\n", o.ID, o.Name, o.Color.Name())
			return nil
		},
	}

	openingRemoveCmd = &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove an opening and the moves only it used",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 0 {
				return fmt.Errorf("invalid opening id %q", args[0])
			}

			ctx := cmd.Context()
			svc, err := openService(ctx, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer svc.Shutdown()

			if err := svc.RemoveOpening(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opening %d removed\n", id)
			return nil
		},
	}
)

func init() {
	openingCmd.AddCommand(openingListCmd, openingAddCmd, openingRemoveCmd)
}
