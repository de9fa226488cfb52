package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"payalert/internal/domain/company"
	"payalert/internal/domain/feed"
	"payalert/internal/domain/ingestion"
	"payalert/internal/domain/transaction"
	"payalert/internal/infrastructure/crypto"
	"payalert/internal/infrastructure/firebase"
	"payalert/internal/infrastructure/gemini"
	"payalert/internal/infrastructure/gmail"
	"payalert/internal/infrastructure/postgres"
	"payalert/internal/infrastructure/postgres/listener"
	httphandlers "payalert/internal/interfaces/http"
	"payalert/internal/interfaces/scheduler"
	"payalert/internal/shared/config"
	"payalert/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Services
	Companies    *company.Service
	Transactions *transaction.Service
	Ingestion    *ingestion.Service

	// Change feed
	Broker   *feed.Broker
	Listener *listener.TransactionListener

	// Handlers
	IngestHandler      *httphandlers.IngestHandler
	TransactionHandler *httphandlers.TransactionHandler
	StreamHandler      *httphandlers.StreamHandler
	DeviceHandler      *httphandlers.DeviceHandler
	HealthHandler      *httphandlers.HealthHandler

	// Scheduler is nil when polling is disabled.
	Scheduler *scheduler.Scheduler
}

// NewDependencies connects to the database, applies migrations and wires every component.
func NewDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Dependencies, error) {
	connStr := cfg.Database.ConnectionString()
	db, err := postgres.NewWithOptions(connStr, postgres.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		return nil, err
	}
	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.DBName).Msg("connected to database")

	if err := db.Migrate(ctx, log); err != nil {
		db.Close()
		return nil, err
	}

	deps, err := wire(ctx, db, connStr, cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return deps, nil
}

func wire(ctx context.Context, db *postgres.DB, connStr string, cfg *config.Config, log zerolog.Logger) (*Dependencies, error) {
	var cipher company.TokenCipher
	if cfg.Encryption.Key != "" {
		encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
		if err != nil {
			return nil, err
		}
		cipher = encryptor
	} else {
		log.Warn().Msg("ENCRYPTION_KEY not set, stored mailbox tokens are unavailable")
	}

	// Repositories
	txRepo := postgres.NewTransactionRepository(db)
	companyRepo := postgres.NewCompanyRepository(db)

	// Domain services
	companies := company.NewService(companyRepo, cipher, log)
	transactions := transaction.NewService(txRepo)

	var extractor *ingestion.Extractor
	if cfg.Gemini.APIKey != "" {
		model, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:          cfg.Gemini.APIKey,
			Model:           cfg.Gemini.Model,
			MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
			Timeout:         cfg.Gemini.Timeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
		}
		extractor = ingestion.NewExtractor(model, cfg.Ingestion.BodyLimit, log)
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, ingestion requests will fail")
	}

	pipeline := ingestion.NewService(txRepo, companies, extractor, ingestion.Config{
		DefaultSenders:   cfg.Ingestion.SenderDomains,
		BatchSize:        cfg.Ingestion.BatchSize,
		MinContentLength: cfg.Ingestion.MinContentLength,
		BodyLimit:        cfg.Ingestion.BodyLimit,
	}, log)

	mailboxes := gmail.NewMailboxes(gmail.NewConnector(gmail.Config{
		ClientID:        cfg.Gmail.ClientID,
		ClientSecret:    cfg.Gmail.ClientSecret,
		SubjectKeywords: cfg.Gmail.SubjectKeywords,
	}, log), companies, cfg.Ingestion.SenderDomains)

	// Change feed: database notifications fan out to SSE subscribers and push
	broker := feed.NewBroker(0, log)
	sinks := feed.Fanout{broker}

	var topics httphandlers.TopicSubscriber
	if cfg.Firebase.CredentialsFile != "" {
		texts, err := messages.Load(cfg.Firebase.MessagesFile)
		if err != nil {
			return nil, err
		}
		push, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, log)
		if err != nil {
			log.Warn().Err(err).Msg("firebase unavailable, push notifications disabled")
		} else {
			sinks = append(sinks, feed.NewNotifier(push, texts.PaymentReceived, log))
			topics = push
		}
	}

	txListener := listener.NewTransactionListener(connStr, postgres.NotifyChannel, txRepo, sinks, log)

	deps := &Dependencies{
		DB:                 db,
		Companies:          companies,
		Transactions:       transactions,
		Ingestion:          pipeline,
		Broker:             broker,
		Listener:           txListener,
		IngestHandler:      httphandlers.NewIngestHandler(pipeline, pipeline, mailboxes, cfg.Ingestion.WebhookSecret),
		TransactionHandler: httphandlers.NewTransactionHandler(transactions),
		StreamHandler:      httphandlers.NewStreamHandler(broker, 0),
		DeviceHandler:      httphandlers.NewDeviceHandler(topics),
		HealthHandler:      httphandlers.NewHealthHandler(db),
	}

	if cfg.Scheduler.Enabled {
		if extractor == nil {
			log.Warn().Msg("scheduler disabled: no extraction model configured")
			return deps, nil
		}
		jobs := scheduler.NewPollingJobs(companies, mailboxes, pipeline, transactions, cfg.Ingestion.StaleAfter)
		sched, err := scheduler.New(scheduler.Config{
			Interval:      cfg.Scheduler.Interval,
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			Pool: scheduler.PoolConfig{
				Workers:    cfg.Scheduler.WorkerCount,
				JobDelay:   cfg.Scheduler.JobDelay,
				JobTimeout: scheduler.BatchJobTimeout(cfg.Ingestion.BatchSize, cfg.Gemini.Timeout),
				QueueSize:  cfg.Scheduler.QueueSize,
			},
			RunOnStartup: cfg.Scheduler.RunOnStartup,
			JobProvider:  jobs.Provide,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create scheduler: %w", err)
		}
		deps.Scheduler = sched
	}

	return deps, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
