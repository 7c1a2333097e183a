package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/catalogmodel/internal/snapshot"
)

func newSnapshotCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and restore model snapshots",
		Long: `Snapshots are named copies of a model document, kept in snapshot.dir or in
Redis when snapshot.redis_addr is set. apply --snapshot compares against one
instead of the catalog's current model.`,
	}
	cmd.AddCommand(newSnapshotSaveCommand(a), newSnapshotLoadCommand(a), newSnapshotListCommand(a))
	return cmd
}

func newSnapshotSaveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save NAME",
		Short: "Save the current model as a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadModel(cmd.Context(), false)
			if err != nil {
				return err
			}
			store, closeStore, err := a.snapshotStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if err := snapshot.Capture(cmd.Context(), store, args[0], m); err != nil {
				return err
			}
			a.logger.Info("saved snapshot", zap.String("name", args[0]))
			return nil
		},
	}
}

func newSnapshotLoadCommand(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "load NAME",
		Short: "Write a snapshot as a model document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.snapshotStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			doc, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeDocument(out, cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVar(&out, "out", "-", "Write the model document to this file")
	return cmd
}

func newSnapshotListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.snapshotStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			names, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
