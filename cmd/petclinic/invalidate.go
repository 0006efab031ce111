package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var invalidateAll bool

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Tell every running instance to drop its cached staff directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := openSession(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer sess.Close()

		if invalidateAll {
			err = sess.clinic.ClearDirectory(cmd.Context())
		} else {
			err = sess.clinic.InvalidateDirectory(cmd.Context())
		}
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "invalidation published")
		return err
	},
}

func init() {
	invalidateCmd.Flags().BoolVar(&invalidateAll, "all", false, "clear every cached directory query")
}
