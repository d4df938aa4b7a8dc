package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/fairscan/internal/watcher"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	var (
		once      bool
		recursive bool
	)
	cmd := &cobra.Command{
		Use:   "watch [flags] [dir...]",
		Short: "Audit model files and re-audit them as they change",
		Long: `Audit every model file under the given directories (or the configured
watch directories) and keep re-auditing files as they are written. Removing a
file deletes its stored audits. Use --once to audit and exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := g.setup(true)
			if err != nil {
				return err
			}
			defer logger.Sync()

			dirs := args
			if len(dirs) == 0 {
				dirs = cfg.Watch.Directories
			}
			if len(dirs) == 0 {
				return fmt.Errorf("no directories given and none configured under watch.directories")
			}
			if !cmd.Flags().Changed("recursive") {
				recursive = cfg.Watch.RecursiveOrDefault()
			}

			c, err := newComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			if once {
				for _, dir := range dirs {
					n, err := c.auditor.AuditDirectory(ctx, dir, cfg.Watch.Extensions)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: %d models audited\n", dir, n)
				}
				return nil
			}

			exts := cfg.Watch.Extensions
			w := watcher.New(dirs, exts, recursive, watcher.NewAuditHandler(c.auditor, exts, logger),
				watcher.WithLogger(logger))
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
			w.SyncExisting()
			fmt.Fprintf(out, "Watching %v (Ctrl-C to stop)\n", w.Directories())
			<-ctx.Done()
			logger.Info("watch stopped", zap.Strings("directories", w.Directories()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "audit the directories once and exit")
	cmd.Flags().BoolVar(&recursive, "recursive", true, "watch subdirectories")
	return cmd
}
