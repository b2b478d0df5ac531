package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleveque/wyckoff-journal/internal/storage"
)

func statsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show provider call counts from the call log",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			db, err := e.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			repo := storage.NewGenerationCallRepository(db)
			stats, err := repo.StatsByProvider(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %8s %8s %8s\n", "PROVIDER", "TOTAL", "OK", "FAILED")
			for _, s := range stats {
				fmt.Fprintf(out, "%-10s %8d %8d %8d\n", s.Provider, s.Total, s.Succeeded, s.Failed)
			}
			return nil
		},
	}
}
