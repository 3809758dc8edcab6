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

	"github.com/lorekeep/lorekeep/internal/ai"
	"github.com/lorekeep/lorekeep/internal/api/handlers"
	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/database"
	"github.com/lorekeep/lorekeep/internal/jobs"
	"github.com/lorekeep/lorekeep/internal/repository"
	"github.com/lorekeep/lorekeep/internal/server"
	"github.com/lorekeep/lorekeep/internal/service"
	"github.com/lorekeep/lorekeep/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and embedding worker",
		Long:  "Start the lorekeep API server and the background embedding worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not run the embedding worker in this process")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.HasSentry() {
		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
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

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
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

	// A bad driver or missing endpoint is fatal here, before anything binds.
	aiClient, err := ai.Resolve(ai.Config{
		Driver:              ai.Driver(cfg.AIDriver),
		APIKey:              cfg.AIAPIKey,
		Endpoint:            cfg.AIEndpoint,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		CompletionModel:     cfg.CompletionModel,
	})
	if err != nil {
		return fmt.Errorf("failed to resolve AI backend: %w", err)
	}
	log.Printf("AI backend ready (driver: %s, embedding model: %s, dimensions: %d)",
		cfg.AIDriver, aiClient.Model(), aiClient.Dimensions())

	pageRepo := repository.NewPageRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	spaceRepo := repository.NewSpaceRepository(pool)
	jobRepo := repository.NewEmbeddingJobRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)

	pipeline := service.NewEmbeddingPipeline(aiClient, pageRepo, chunkRepo)
	retriever := service.NewRetriever(aiClient, spaceRepo, chunkRepo, pageRepo)
	answerer := service.NewAnswerer(retriever, &completionClientAdapter{client: aiClient})

	var worker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker {
		handler := jobs.NewJobHandler(jobRepo, pipeline)
		worker = jobs.NewWorker(handler, cfg.WorkerPollInterval)
		go worker.Start(ctx)
		log.Println("embedding worker started")
	}

	routerCfg := server.RouterConfig{
		AuthValidator: tokenRepo,
		AskHandler:    handlers.NewAskHandler(answerer),
		SearchHandler: handlers.NewSearchHandler(retriever),
	}

	router := server.NewRouter(routerCfg)

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

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// completionClientAdapter narrows *ai.Client to the interface the answerer
// consumes: the concrete stream type becomes the service-level interface.
type completionClientAdapter struct {
	client *ai.Client
}

func (a *completionClientAdapter) StreamCompletion(ctx context.Context, system, user string) (service.CompletionStream, error) {
	return a.client.StreamCompletion(ctx, system, user)
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
