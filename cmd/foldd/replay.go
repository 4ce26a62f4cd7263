package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/foldd/internal/editor"
	"github.com/fyrsmithlabs/foldd/internal/folding"
)

// ReplayStep is the JSON form of one replayed version.
type ReplayStep struct {
	Path   string        `json:"path"`
	Change editor.Change `json:"change"`
	Folds  []editor.Fold `json:"folds"`
}

func newReplayCmd() *cobra.Command {
	var (
		language string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "replay <file> <file>...",
		Short: "Reconcile successive versions of a file and print each batch",
		Long: `Open the first file, then replace its text with each following file in turn.
Every step prints the batch of removals (-), insertions (+) and updates (~) that
brought the fold regions up to date. Handles that survive a step keep their
collapsed state.

Examples:
  foldd replay v1.go v2.go v3.go
  foldd replay --json before.py after.py`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			doc, err := rt.openFile(ctx, args[0], language)
			if err != nil {
				return err
			}

			steps := []ReplayStep{{
				Path:  args[0],
				Folds: doc.Folds(),
			}}
			for _, path := range args[1:] {
				text, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				change, err := doc.SetText(ctx, text)
				if err != nil {
					return err
				}
				steps = append(steps, ReplayStep{Path: path, Change: change, Folds: doc.Folds()})
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(steps)
			}
			for i, step := range steps {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				writeStep(cmd.OutOrStdout(), step)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "lang", "", "language name (inferred from the first file if empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writeStep(w io.Writer, step ReplayStep) {
	c := step.Change
	fmt.Fprintf(w, "revision %d %s: %d folds\n", c.Revision, step.Path, len(step.Folds))
	if c.Revision == 0 {
		for _, f := range step.Folds {
			writeFold(w, f)
		}
		return
	}
	if c.Dropped {
		fmt.Fprintln(w, "  batch dropped")
		return
	}
	writeBatch(w, c.Batch)
}

func writeBatch(w io.Writer, b folding.Batch) {
	if b.IsEmpty() {
		fmt.Fprintln(w, "  no changes")
		return
	}
	for _, h := range b.Removals {
		fmt.Fprintf(w, "  - #%d\n", h)
	}
	for _, ins := range b.Insertions {
		state := ""
		if ins.Collapsed {
			state = " collapsed"
		}
		fmt.Fprintf(w, "  + #%d %s%s\n", ins.Handle, ins.Interval, state)
	}
	for _, u := range b.Updates {
		fmt.Fprintf(w, "  ~ #%d %s\n", u.Handle, u.Interval)
	}
}
