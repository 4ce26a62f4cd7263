package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/foldd/internal/viewer"
	"github.com/fyrsmithlabs/foldd/internal/watch"
)

func newViewCmd() *cobra.Command {
	var (
		language string
		follow   bool
	)

	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Browse a file's folds in the terminal",
		Long: `Open a file in a terminal viewer. Folds can be collapsed and expanded, and
the file reloaded from disk to see which folds keep their state.

Examples:
  foldd view main.go
  foldd view --follow main.go`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rt, err := newRuntime(ctx, runtimeOptions{quiet: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			doc, err := rt.openFile(ctx, args[0], language)
			if err != nil {
				return err
			}

			var opts viewer.Options
			if follow {
				w, err := watch.New(args[0], doc,
					watch.WithLogger(rt.logger.Underlying()),
					watch.WithLimit(rt.cfg.Watch.MinInterval.Duration(), rt.cfg.Watch.Burst),
				)
				if err != nil {
					return err
				}
				w.Seed(doc.Text())
				if err := w.Start(ctx); err != nil {
					w.Stop()
					return err
				}
				defer w.Stop()
				opts.Reloads = w.Events()
			}

			p := tea.NewProgram(viewer.NewModel(doc, opts), tea.WithAltScreen(), tea.WithContext(ctx))
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().StringVar(&language, "lang", "", "language name (inferred from the file extension if empty)")
	cmd.Flags().BoolVar(&follow, "follow", false, "reload automatically when the file changes")
	return cmd
}
