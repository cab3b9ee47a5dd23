package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/questboard/questboard/internal/repository"
	"github.com/questboard/questboard/internal/service"
	"github.com/spf13/cobra"
)

func ProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Quest progress maintenance",
	}

	var questID string
	recompute := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute stored quest progress from KPIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(database *sqlx.DB, driver string) error {
				quests := newQuestService(database)

				var changed int
				var err error
				if questID != "" {
					changed, err = quests.RecomputeQuest(cmd.Context(), questID)
				} else {
					changed, err = quests.RecomputeAll(cmd.Context())
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "quests updated: %d\n", changed)
				return nil
			})
		},
	}
	recompute.Flags().StringVar(&questID, "quest", "", "only recompute this quest id")

	cmd.AddCommand(recompute)
	return cmd
}

// newQuestService builds a QuestService whose emails are only logged, so an
// offline repair never mails users.
func newQuestService(database *sqlx.DB) *service.QuestService {
	email := service.NewEmailService("", "", "", "Questboard", true)
	return service.NewQuestService(
		repository.NewQuestRepository(database),
		repository.NewKPIRepository(database),
		repository.NewProfileRepository(database),
		repository.NewUserRepository(database),
		email,
	)
}
