package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MarcinPiech/DHLAI/app"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Manage the contact directory",
}

var contactsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Upsert contacts from the active sheet of a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()
		return withService(func(svc *app.Service) error {
			rep, err := svc.ImportContacts(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, rep)
		})
	},
}

func init() {
	contactsCmd.AddCommand(contactsImportCmd)
	rootCmd.AddCommand(contactsCmd)
}
