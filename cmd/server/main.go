package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"civicwatch/internal/adapters/memory"
	pg "civicwatch/internal/adapters/postgres"
	"civicwatch/internal/audit"
	"civicwatch/internal/config"
	"civicwatch/internal/ports"
)

const serviceName = "civicwatch"

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	envFile string
	memory  bool
}

func rootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Nonprofit compliance monitoring: alerts and reports",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Optional dotenv file read before the environment")
	root.PersistentFlags().BoolVar(&opts.memory, "memory", false, "Use an empty in-memory store instead of Postgres (development only)")

	root.AddCommand(serveCommand(opts), migrateCommand(opts), evaluateCommand(opts))
	return root
}

// store is everything the services and workers need from persistence.
type store interface {
	ports.OrganizationRepository
	ports.DAFRepository
	ports.DonorRepository
	ports.FilingRepository
	ports.AlertRepository
	ports.GrantRepository
	ports.RiskScoreRepository
	ports.JobRepository
	audit.Repository
}

// openStore connects to Postgres (migrating first when asked) or returns an
// in-memory store. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config, opts *rootOptions, migrate bool, log *slog.Logger) (store, func(), error) {
	if opts.memory {
		log.Warn("using in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required (or pass --memory)")
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("migrations applied")
	}
	return db, db.Close, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, hopts)
	if cfg.Production() {
		h = slog.NewJSONHandler(os.Stderr, hopts)
	}
	return slog.New(h).With("service", serviceName, "env", cfg.Env)
}
