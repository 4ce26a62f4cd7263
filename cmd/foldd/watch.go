package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foldd/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Print fold changes as a file is edited",
		Long: `Open a file and reconcile its folds every time it is saved. Reloads are
throttled by watch.min_interval and watch.burst from the config.

Examples:
  foldd watch main.go`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rt, err := newRuntime(ctx, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			doc, err := rt.openFile(ctx, args[0], language)
			if err != nil {
				return err
			}

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

			out := cmd.OutOrStdout()
			writeStep(out, ReplayStep{Path: args[0], Folds: doc.Folds()})
			rt.logger.Info(ctx, "watching", zap.String("path", w.Path()))

			for reload := range w.Events() {
				if reload.Err != nil {
					fmt.Fprintf(out, "\nerror: %v\n", reload.Err)
					continue
				}
				fmt.Fprintln(out)
				writeStep(out, ReplayStep{Path: args[0], Change: reload.Change, Folds: doc.Folds()})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "lang", "", "language name (inferred from the file extension if empty)")
	return cmd
}
