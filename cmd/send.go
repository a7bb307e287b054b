package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MarcinPiech/DHLAI/app"
	"github.com/MarcinPiech/DHLAI/pkg/export"
)

var sendCmd = &cobra.Command{
	Use:   "send <period-id>",
	Short: "Send the ready drafts of a period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			res, err := svc.SendPeriod(ctx, id)
			if res != nil {
				if perr := printJSON(cmd, res); perr != nil {
					return perr
				}
			}
			return err
		})
	},
}

var sendDraftCmd = &cobra.Command{
	Use:   "send-draft <draft-id>",
	Short: "Send a single draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			ok, err := svc.SendDraft(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"draft_id": id, "sent": ok})
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <period-id>",
	Short: "Show the delivery statistics of a period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			s, err := svc.Stats(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		})
	},
}

var (
	logsPeriod int64
	logsLimit  int
	logsFormat string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List the delivery log, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			entries, err := svc.Logs(ctx, logsPeriod, logsLimit)
			if err != nil {
				return err
			}
			return export.Write(cmd.OutOrStdout(), logsFormat, entries)
		})
	},
}

func init() {
	logsCmd.Flags().Int64Var(&logsPeriod, "period", 0, "restrict to one period")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 100, "maximum entries")
	logsCmd.Flags().StringVar(&logsFormat, "format", "json", "output format: json or csv")
	rootCmd.AddCommand(sendCmd, sendDraftCmd, statsCmd, logsCmd)
}
