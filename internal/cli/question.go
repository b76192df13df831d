package cli

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
)

// NewQuestionCmd prints one generated question as JSON.
func NewQuestionCmd(configPath *string) *cobra.Command {
	var (
		level int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "question",
		Short: "Generate a question for a level and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}
			gen, err := newGenerator(cfg, seed)
			if err != nil {
				return err
			}
			q, err := gen.Generate(level)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(q)
		},
	}
	cmd.Flags().IntVar(&level, "level", 1, "difficulty level")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default: time based)")
	return cmd
}
