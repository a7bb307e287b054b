package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MarcinPiech/DHLAI/app"
)

var validateCmd = &cobra.Command{
	Use:   "validate <period-id>",
	Short: "Run the business-rule checks of a period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			rep, err := svc.ValidatePeriod(ctx, id)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, rep); err != nil {
				return err
			}
			if !rep.Valid {
				return app.ErrValidationFailed
			}
			return nil
		})
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <period-id>",
	Short: "Generate the email drafts of a period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			res, err := svc.GenerateDrafts(ctx, id)
			if res != nil && (err == nil || errors.Is(err, app.ErrValidationFailed)) {
				if perr := printJSON(cmd, res); perr != nil {
					return perr
				}
			}
			return err
		})
	},
}

var approveIDs []int64

var approveCmd = &cobra.Command{
	Use:   "approve <period-id>",
	Short: "Mark validated drafts ready to send",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			res, err := svc.ApproveDrafts(ctx, id, approveIDs)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		})
	},
}

var draftsCmd = &cobra.Command{
	Use:   "drafts <period-id>",
	Short: "List the drafts of a period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			ds, err := svc.Drafts(ctx, id)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, d := range ds {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", d.ID, d.Category, d.Status, d.RecipientEmail, d.Subject)
			}
			return nil
		})
	},
}

var previewPlain bool

var previewCmd = &cobra.Command{
	Use:   "preview <draft-id>",
	Short: "Print the body of a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			d, err := svc.Preview(ctx, id)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "To: %s <%s>\nSubject: %s\n\n", d.RecipientName, d.RecipientEmail, d.Subject)
			if previewPlain {
				fmt.Fprintln(w, d.BodyPlain)
			} else {
				fmt.Fprintln(w, d.BodyHTML)
			}
			return nil
		})
	},
}

func init() {
	approveCmd.Flags().Int64SliceVar(&approveIDs, "draft", nil, "draft ids to approve (default all)")
	previewCmd.Flags().BoolVar(&previewPlain, "plain", false, "print the plain-text alternative")
	rootCmd.AddCommand(validateCmd, generateCmd, approveCmd, draftsCmd, previewCmd)
}
