package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MarcinPiech/DHLAI/app"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load weekly spreadsheets",
}

var ingestPlanCmd = &cobra.Command{
	Use:   "plan <label> <year> <file>",
	Short: "Store a new version of the weekly plan",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("year: %w", err)
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			res, err := svc.IngestPlan(ctx, args[0], year, args[2])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		})
	},
}

var ingestBagsCmd = &cobra.Command{
	Use:   "bags <period-id> <file>",
	Short: "Replace the bag pickups of a period",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			res, err := svc.IngestBags(ctx, id, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		})
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <old-version-id> <new-version-id>",
	Short: "Compare two stored plan versions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldID, err := parseID(args[0])
		if err != nil {
			return err
		}
		newID, err := parseID(args[1])
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			d, err := svc.Diff(ctx, oldID, newID)
			if err != nil {
				return err
			}
			return printJSON(cmd, d)
		})
	},
}

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "List periods",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			ps, err := svc.ListPeriods(ctx)
			if err != nil {
				return err
			}
			for _, p := range ps {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", p.ID, p, p.Status)
			}
			return nil
		})
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions <period-id>",
	Short: "List the plan versions of a period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			vs, err := svc.Versions(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, vs)
		})
	},
}

var deletePeriodCmd = &cobra.Command{
	Use:   "delete-period <period-id>",
	Short: "Delete a period with everything stored for it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			return svc.DeletePeriod(ctx, id)
		})
	},
}

func init() {
	ingestCmd.AddCommand(ingestPlanCmd, ingestBagsCmd)
	rootCmd.AddCommand(ingestCmd, diffCmd, periodsCmd, versionsCmd, deletePeriodCmd)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
