package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewLeaderboardCmd prints the top users from the configured storage.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the top users by points",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			lb, err := rt.leaderboard.Snapshot(cmd.Context(), limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(lb)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of users to show")
	return cmd
}
