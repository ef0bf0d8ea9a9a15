package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/jobmatch/internal/domain/syncstate"
)

func newSyncCmd(flags *rootFlags) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass: crawl file -> store -> vector index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(ctx context.Context, a *app) error {
				svc, err := a.syncService(source)
				if err != nil {
					return err
				}
				rep, err := svc.Run(ctx)
				if err != nil {
					return fmt.Errorf("sync: %w", err)
				}
				if err := printJSON(cmd, rep); err != nil {
					return err
				}
				if rep.State == syncstate.Rejected {
					return fmt.Errorf("sync pass %s rejected: %s", rep.RunID, rep.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "crawl file (JSON array or JSON Lines), overrides sync.source_file")
	return cmd
}

func newRepairCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Re-index job ids the store accepted but the index never received",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(ctx context.Context, a *app) error {
				svc, err := a.syncService("")
				if err != nil {
					return err
				}
				rep, err := svc.Repair(ctx)
				if perr := printJSON(cmd, rep); perr != nil {
					return perr
				}
				if err != nil {
					return fmt.Errorf("repair: %w", err)
				}
				return nil
			})
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
