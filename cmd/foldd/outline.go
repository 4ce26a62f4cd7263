package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/foldd/internal/editor"
)

// OutlineOutput is the JSON form of the outline command.
type OutlineOutput struct {
	Path     string                `json:"path"`
	Language string                `json:"language"`
	Outline  []editor.OutlineEntry `json:"outline"`
	Folds    []editor.Fold         `json:"folds"`
}

func newOutlineCmd() *cobra.Command {
	var (
		language string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "outline <file>",
		Short: "Print a file's outline and fold regions",
		Long: `Parse a file and print its structure tree followed by the fold regions
derived from it. Line numbers are 1-based.

Examples:
  # Outline a Go file
  foldd outline main.go

  # Force the language and print JSON
  foldd outline --lang python --json script`,
		Args: cobra.ExactArgs(1),
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

			out := OutlineOutput{
				Path:     args[0],
				Language: doc.Language().Name,
				Outline:  editor.FlattenOutline(doc.Outline()),
				Folds:    doc.Folds(),
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			writeOutline(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "lang", "", "language name (inferred from the file extension if empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writeOutline(w io.Writer, out OutlineOutput) {
	fmt.Fprintf(w, "%s (%s)\n", out.Path, out.Language)
	for _, e := range out.Outline {
		fmt.Fprintf(w, "%s%s [%s] %d-%d", strings.Repeat("  ", e.Depth), e.Type, e.Kind, e.StartLine+1, e.EndLine+1)
		if e.Doc != nil {
			fmt.Fprintf(w, " doc %d-%d", e.Doc.Start+1, e.Doc.End+1)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\n%d folds\n", len(out.Folds))
	for _, f := range out.Folds {
		writeFold(w, f)
	}
}

func writeFold(w io.Writer, f editor.Fold) {
	state := "expanded"
	if f.Collapsed {
		state = "collapsed"
	}
	fmt.Fprintf(w, "  #%d %s/%s %d-%d %s\n", f.Handle, f.Kind, f.Discriminator, f.StartLine+1, f.EndLine+1, state)
}
