package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quadfuse/quadfuse/internal/store/patternstore"
)

func newPatternCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pattern",
		Short: "Manage learned patterns",
	}

	cmd.AddCommand(newPatternAddCmd())
	cmd.AddCommand(newPatternRmCmd())
	cmd.AddCommand(newPatternListCmd())

	return cmd
}

func newPatternAddCmd() *cobra.Command {
	var confidence float64

	cmd := &cobra.Command{
		Use:   "add <id> <trigger> <action>",
		Short: "Store a learned pattern",
		Long: `Store a trigger/action pattern. Matching queries surface the
pattern with a score scaled by its confidence.

Example:
  quadfuse pattern add pat-1 "flaky test" "rerun with -count=3" --confidence 0.8`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatternAdd(cmd, args[0], args[1], args[2], confidence)
		},
	}

	cmd.Flags().Float64Var(&confidence, "confidence", 0.5, "Confidence in [0,1]")

	return cmd
}

func runPatternAdd(cmd *cobra.Command, id, trigger, action string, confidence float64) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.patterns.Put(patternstore.Pattern{
		ID:         id,
		Trigger:    trigger,
		Action:     action,
		Confidence: confidence,
	})
	if err != nil {
		return err
	}
	if err := a.savePatterns(); err != nil {
		return err
	}

	a.out.Successf("stored pattern %s (%d total)", id, a.patterns.Len())
	return nil
}

func newPatternRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a learned pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatternRm(cmd, args[0])
		},
	}
	return cmd
}

func runPatternRm(cmd *cobra.Command, id string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.patterns.Delete(id) {
		return fmt.Errorf("pattern not found: %s", id)
	}
	if err := a.savePatterns(); err != nil {
		return err
	}

	a.out.Successf("deleted pattern %s", id)
	return nil
}

func newPatternListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List patterns by descending confidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatternList(cmd)
		},
	}
	return cmd
}

func runPatternList(cmd *cobra.Command) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	patterns := a.patterns.All()
	if len(patterns) == 0 {
		a.out.Status("", "no patterns")
		return nil
	}
	for _, p := range patterns {
		a.out.Statusf("", "%.2f  %-16s %s => %s", p.Confidence, p.ID, p.Trigger, p.Action)
	}
	return nil
}
