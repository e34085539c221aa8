package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quadfuse/quadfuse/internal/embed"
	"github.com/quadfuse/quadfuse/internal/vectormath"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the vector index",
	}

	cmd.AddCommand(newIndexAddCmd())
	cmd.AddCommand(newIndexRmCmd())
	cmd.AddCommand(newIndexRebuildCmd())

	return cmd
}

// indexDoc is one entry in a bulk-add file.
type indexDoc struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func newIndexAddCmd() *cobra.Command {
	var file string
	var workers int

	cmd := &cobra.Command{
		Use:   "add [<id> <text>...]",
		Short: "Embed and index a document",
		Long: `Embed a document and insert it into the vector index.

With --file, read a JSON array of {"id", "text"} objects and index them
in embedding batches.

Examples:
  quadfuse index add doc-1 "retry with exponential backoff"
  quadfuse index add --file docs.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				if len(args) > 0 {
					return fmt.Errorf("--file cannot be combined with positional arguments")
				}
				return runIndexAddFile(cmd, file, workers)
			}
			if len(args) < 2 {
				return fmt.Errorf("expected <id> <text>, or --file")
			}
			return runIndexAdd(cmd, args[0], strings.Join(args[1:], " "))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file of documents to index")
	cmd.Flags().IntVar(&workers, "workers", 0, "Embedding workers for --file (default GOMAXPROCS)")

	return cmd
}

func runIndexAdd(cmd *cobra.Command, id, text string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	vector, err := a.embedder.Embed(cmd.Context(), text)
	if err != nil {
		return err
	}
	if err := a.index.Insert(id, vector); err != nil {
		return err
	}
	if err := a.saveIndex(); err != nil {
		return err
	}

	a.out.Successf("indexed %s (%d vectors total)", id, a.index.Size())
	return nil
}

func runIndexAddFile(cmd *cobra.Command, path string, workers int) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var docs []indexDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(docs) == 0 {
		a.out.Warning("no documents to index")
		return nil
	}

	pooled, err := embed.NewPooledEmbedder(a.embedder, workers)
	if err != nil {
		return err
	}
	defer pooled.Close()

	texts := make([]string, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("document %d has no id", i)
		}
		texts[i] = d.Text
	}

	vectors, err := pooled.EmbedBatch(cmd.Context(), texts)
	if err != nil {
		return err
	}

	for i, d := range docs {
		if err := a.index.Insert(d.ID, vectors[i]); err != nil {
			return fmt.Errorf("failed to index %s: %w", d.ID, err)
		}
		a.out.Progress(i+1, len(docs), "indexing")
	}

	if err := a.saveIndex(); err != nil {
		return err
	}

	a.out.Successf("indexed %d documents (%d vectors total)", len(docs), a.index.Size())
	return nil
}

func newIndexRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Remove documents from the vector index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexRm(cmd, args)
		},
	}
	return cmd
}

func runIndexRm(cmd *cobra.Command, ids []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	removed := 0
	for _, id := range ids {
		if a.index.Delete(id) {
			removed++
		} else {
			a.out.Warningf("not indexed: %s", id)
		}
	}

	if removed > 0 {
		if err := a.saveIndex(); err != nil {
			return err
		}
	}

	a.out.Successf("removed %d of %d (%d vectors remain)", removed, len(ids), a.index.Size())
	return nil
}

func newIndexRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the index graph from its live vectors",
		Long: `Re-insert every live vector into a fresh proximity graph. Useful
after many deletions, which degrade graph connectivity over time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexRebuild(cmd)
		},
	}
	return cmd
}

func runIndexRebuild(cmd *cobra.Command) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	elapsed, err := vectormath.Timed(func() error { return a.index.Rebuild() })
	if err != nil {
		return err
	}
	if err := a.saveIndex(); err != nil {
		return err
	}

	a.out.Successf("rebuilt index with %d vectors in %s", a.index.Size(), elapsed.Round(time.Millisecond))
	return nil
}
