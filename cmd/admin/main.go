package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"payalert/internal/domain/company"
	"payalert/internal/domain/ingestion"
	"payalert/internal/domain/transaction"
	"payalert/internal/infrastructure/crypto"
	"payalert/internal/infrastructure/gemini"
	"payalert/internal/infrastructure/postgres"
	"payalert/internal/shared/config"
	"payalert/internal/shared/logger"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "admin",
		Short: "PayAlert admin CLI",
		Long: `Management commands for the PayAlert API.

Configuration is read from the same environment variables (and .env file) as the server.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		migrateCmd(),
		companyCmd(),
		processPendingCmd(),
		failStaleCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// env is the runtime shared by every command.
type env struct {
	cfg *config.Config
	log zerolog.Logger
	db  *postgres.DB
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := logger.New(level, "console")

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func (e *env) Close() {
	e.db.Close()
}

func (e *env) companies() (*company.Service, error) {
	var cipher company.TokenCipher
	if e.cfg.Encryption.Key != "" {
		encryptor, err := crypto.NewEncryptor(e.cfg.Encryption.Key)
		if err != nil {
			return nil, err
		}
		cipher = encryptor
	}
	return company.NewService(postgres.NewCompanyRepository(e.db), cipher, e.log), nil
}

func (e *env) transactions() *transaction.Service {
	return transaction.NewService(postgres.NewTransactionRepository(e.db))
}

// pipeline builds the ingestion service; extraction commands need a model.
func (e *env) pipeline(ctx context.Context, companies *company.Service) (*ingestion.Service, error) {
	if e.cfg.Gemini.APIKey == "" {
		return nil, ingestion.ErrNotConfigured
	}
	model, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:          e.cfg.Gemini.APIKey,
		Model:           e.cfg.Gemini.Model,
		MaxOutputTokens: e.cfg.Gemini.MaxOutputTokens,
		Timeout:         e.cfg.Gemini.Timeout,
	}, e.log)
	if err != nil {
		return nil, err
	}

	return ingestion.NewService(
		postgres.NewTransactionRepository(e.db),
		companies,
		ingestion.NewExtractor(model, e.cfg.Ingestion.BodyLimit, e.log),
		ingestion.Config{
			DefaultSenders:   e.cfg.Ingestion.SenderDomains,
			BatchSize:        e.cfg.Ingestion.BatchSize,
			MinContentLength: e.cfg.Ingestion.MinContentLength,
			BodyLimit:        e.cfg.Ingestion.BodyLimit,
		},
		e.log,
	), nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			return e.db.Migrate(cmd.Context(), e.log)
		},
	}
}
