package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"goflare.io/petclinic/internal/visits"
	"goflare.io/petclinic/models"
)

var groupByPet bool

var visitsCmd = &cobra.Command{
	Use:   "visits PET_ID...",
	Short: "Read the visit history of one or more pets in a single store call",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		petIDs, err := parsePetIDs(args)
		if err != nil {
			return err
		}

		sess, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer sess.Close()

		records, err := sess.clinic.ReadVisitsBatch(cmd.Context(), petIDs)
		if err != nil {
			return err
		}
		if groupByPet {
			return printJSON(cmd.OutOrStdout(), visits.GroupByPet(records))
		}
		return printJSON(cmd.OutOrStdout(), models.Visits{Items: records})
	},
}

func init() {
	visitsCmd.Flags().BoolVar(&groupByPet, "group", false, "group visits by pet id")
}

func parsePetIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pet id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
