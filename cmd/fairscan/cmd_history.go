package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/fairscan/internal/cli"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		offset int
		limit  int
		output string
		remove bool
	)
	cmd := &cobra.Command{
		Use:   "history [flags] [id]",
		Short: "List stored audits, or show or delete one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(output)
			if err != nil {
				return err
			}
			if remove && len(args) == 0 {
				return fmt.Errorf("--delete needs an audit id")
			}
			cfg, _, logger, err := g.setup(true)
			if err != nil {
				return err
			}
			defer logger.Sync()
			c, err := newComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				audits, err := c.storage.ListAudits(ctx, offset, limit)
				if err != nil {
					return err
				}
				return cli.WriteAuditList(out, audits, format)
			}
			if remove {
				if err := c.storage.DeleteAudit(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Audit deleted: %s\n", args[0])
				return nil
			}
			result, err := c.storage.GetAudit(ctx, args[0])
			if err != nil {
				return err
			}
			return cli.WriteAudit(out, result, format)
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&offset, "offset", 0, "skip this many audits, newest first")
	fl.IntVar(&limit, "limit", 20, "number of audits to list")
	fl.StringVarP(&output, "output", "o", "text", "output format: text, markdown or json")
	fl.BoolVar(&remove, "delete", false, "delete the audit with the given id")
	return cmd
}
