package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/quadfuse/quadfuse/internal/store/memstore"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Manage episodic memory records",
	}

	cmd.AddCommand(newMemoryAddCmd())
	cmd.AddCommand(newMemoryRmCmd())

	return cmd
}

func newMemoryAddCmd() *cobra.Command {
	var namespace string
	var salience float64

	cmd := &cobra.Command{
		Use:   "add <id> <content>...",
		Short: "Store a memory record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryAdd(cmd, args[0], strings.Join(args[1:], " "), namespace, salience)
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace (default from config)")
	cmd.Flags().Float64Var(&salience, "salience", 0, "Importance in [0,1], defaults to 0.5")

	return cmd
}

func runMemoryAdd(cmd *cobra.Command, id, content, namespace string, salience float64) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if namespace == "" {
		namespace = a.cfg.Search.MemoryNamespace
	}

	err = a.memory.Put(memstore.Record{
		ID:        id,
		Namespace: namespace,
		Content:   content,
		Salience:  salience,
	})
	if err != nil {
		return err
	}

	a.out.Successf("stored memory %s in namespace %s", id, namespace)
	return nil
}

func newMemoryRmCmd() *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a memory record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryRm(cmd, args[0], namespace)
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace (default from config)")

	return cmd
}

func runMemoryRm(cmd *cobra.Command, id, namespace string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if namespace == "" {
		namespace = a.cfg.Search.MemoryNamespace
	}

	if err := a.memory.Delete(namespace, id); err != nil {
		return err
	}
	a.out.Successf("deleted memory %s", id)
	return nil
}
