package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"civicwatch/internal/config"
)

func migrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.memory {
				return fmt.Errorf("migrate needs a database; drop --memory")
			}
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			_, closeStore, err := openStore(cmd.Context(), cfg, opts, true, newLogger(cfg))
			if err != nil {
				return err
			}
			closeStore()
			return nil
		},
	}
}
