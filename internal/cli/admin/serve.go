package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"github.com/verdantlabs/verdant/internal/api/handlers"
	"github.com/verdantlabs/verdant/internal/config"
	"github.com/verdantlabs/verdant/internal/database"
	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/embedding"
	"github.com/verdantlabs/verdant/internal/extract"
	"github.com/verdantlabs/verdant/internal/genai"
	"github.com/verdantlabs/verdant/internal/jobs"
	"github.com/verdantlabs/verdant/internal/repository"
	"github.com/verdantlabs/verdant/internal/server"
	"github.com/verdantlabs/verdant/internal/service"
	"github.com/verdantlabs/verdant/internal/storage"
	"github.com/verdantlabs/verdant/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the verdant API server and the background ingestion worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	if !cfg.HasS3() {
		return fmt.Errorf("S3 storage is required: set VERDANT_S3_ENDPOINT, VERDANT_S3_ACCESS_KEY_ID and VERDANT_S3_SECRET_ACCESS_KEY")
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("embedding provider is required: set VERDANT_OPENAI_API_KEY")
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	tenantRepo := repository.NewTenantRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	ingestJobRepo := repository.NewIngestJobRepository(pool)
	vectorRepo := repository.NewVectorRepository(pool)
	sessionRepo := repository.NewChatSessionRepository(pool)
	turnRepo := repository.NewConversationTurnRepository(pool)
	unansweredRepo := repository.NewUnansweredQueryRepository(pool)
	faqRepo := repository.NewFaqRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	tenantSvc := service.NewTenantService(tenantRepo, apiKeyRepo, uuidGen)

	if cfg.InitTenantName != "" {
		if err := bootstrapInitialTenant(ctx, cfg, tenantRepo, tenantSvc); err != nil {
			return fmt.Errorf("failed to bootstrap initial tenant: %w", err)
		}
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	embedder := embedding.NewGateway(embedding.Config{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
		BatchSize:  cfg.EmbeddingBatchSize,
	})

	provider, err := genai.New(genai.Config{
		Provider:         cfg.AIProvider,
		Model:            cfg.AIModel,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
		OpenRouterAPIKey: cfg.OpenRouterAPIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create generation provider: %w", err)
	}
	log.Printf("generation provider: %s", provider.Name())

	segmenter := service.NewSegmenter(service.DefaultSegmenterConfig())
	extractor := &extract.PDFExtractor{}

	ingestionSvc := service.NewIngestionService(
		documentRepo, ingestJobRepo, vectorRepo, s3Client, extractor, embedder, segmenter, uuidGen,
	)

	policy := service.NewRetrievalPolicy(service.RetrievalPolicyConfig{
		SimilarityThreshold: cfg.SimilarityThreshold,
		TrackScoreLow:       cfg.TrackScoreLow,
		TrackScoreHigh:      cfg.TrackScoreHigh,
	})
	trackerSvc := service.NewTrackerService(txRunner, unansweredRepo, uuidGen)
	chatSvc := service.NewChatService(
		sessionRepo, turnRepo, vectorRepo, faqRepo, embedder, provider, policy, trackerSvc, uuidGen, cfg.RetrievalTopK,
	)
	faqSvc := service.NewFaqService(faqRepo, uuidGen)
	suggestionSvc := service.NewSuggestionService(unansweredRepo, faqRepo, provider)
	analyticsSvc := service.NewAnalyticsService(documentRepo, sessionRepo, unansweredRepo, faqRepo)

	ingestProcessor := jobs.NewIngestWorker(ingestJobRepo, ingestionSvc)
	ingestWorker := jobs.NewWorker(ingestProcessor, 5*time.Second)
	go ingestWorker.Start(ctx)
	log.Println("ingestion worker started")

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:    tenantSvc,
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		DocumentHandler:  handlers.NewDocumentHandler(ingestionSvc),
		SessionHandler:   handlers.NewSessionHandler(chatSvc),
		AnalyticsHandler: handlers.NewAnalyticsHandler(analyticsSvc, trackerSvc, suggestionSvc),
		FaqHandler:       handlers.NewFaqHandler(faqSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	ingestWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func bootstrapInitialTenant(ctx context.Context, cfg *config.Config, tenantRepo *repository.TenantRepository, tenantSvc *service.TenantService) error {
	tenant, err := tenantRepo.GetByName(ctx, cfg.InitTenantName)
	if err != nil && err != domain.ErrTenantNotFound {
		return fmt.Errorf("failed to check existing tenant: %w", err)
	}

	if tenant == nil {
		tenant, err = tenantSvc.CreateTenant(ctx, cfg.InitTenantName)
		if err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}
		log.Printf("bootstrap: created tenant '%s' (id: %s)", tenant.Name, tenant.ID)
	} else {
		log.Printf("bootstrap: tenant '%s' already exists (id: %s)", tenant.Name, tenant.ID)
	}

	if cfg.InitAPIKey != "" {
		if !service.IsValidAPIToken(cfg.InitAPIKey) {
			return fmt.Errorf("invalid VERDANT_INIT_API_KEY format (expected 'vrd_<64 hex chars>')")
		}

		if _, err := tenantSvc.ValidateAPIKey(ctx, cfg.InitAPIKey); err == nil {
			log.Printf("bootstrap: API key already exists")
			return nil
		}

		if err := tenantSvc.CreateAPIKeyWithToken(ctx, tenant.ID, "bootstrap", cfg.InitAPIKey); err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}
		log.Printf("bootstrap: created API key")
	}

	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
