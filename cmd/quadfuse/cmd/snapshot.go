package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quadfuse/quadfuse/internal/vectorindex"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and restore vector index snapshots",
	}

	cmd.AddCommand(newSnapshotSaveCmd())
	cmd.AddCommand(newSnapshotLoadCmd())

	return cmd
}

func newSnapshotSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [path]",
		Short: "Write the index to a snapshot file",
		Long: `Write the index to a versioned JSON snapshot. With no path the
configured snapshot location is used. Writes are atomic: the snapshot
lands in a temp file first and is renamed into place under a file lock.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotSave(cmd, args)
		},
	}
	return cmd
}

func runSnapshotSave(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	path := a.snapshotPath()
	if len(args) == 1 {
		path = args[0]
	}

	if err := a.index.SaveFile(path); err != nil {
		return err
	}
	a.out.Successf("saved %d vectors to %s", a.index.Size(), path)
	return nil
}

func newSnapshotLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <path>",
		Short: "Replace the index with a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotLoad(cmd, args[0])
		},
	}
	return cmd
}

func runSnapshotLoad(cmd *cobra.Command, path string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	idx, err := vectorindex.LoadFile(path)
	if err != nil {
		return err
	}
	if idx.Dimension() != a.cfg.Index.Dimension {
		return fmt.Errorf("snapshot dimension %d does not match index.dimension %d",
			idx.Dimension(), a.cfg.Index.Dimension)
	}

	a.index = idx
	if err := a.saveIndex(); err != nil {
		return err
	}
	a.out.Successf("loaded %d vectors from %s", idx.Size(), path)
	return nil
}
