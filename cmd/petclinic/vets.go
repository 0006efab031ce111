package main

import (
	"github.com/spf13/cobra"
)

var vetsCmd = &cobra.Command{
	Use:   "vets",
	Short: "List the veterinary staff directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer sess.Close()

		staff, err := sess.clinic.ListStaff(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), staff)
	},
}
