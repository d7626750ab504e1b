package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/CrowderSoup/collab-board/database"
	"github.com/CrowderSoup/collab-board/database/postgres"
	"github.com/CrowderSoup/collab-board/handlers"
	"github.com/CrowderSoup/collab-board/services"
)

func main() {
	// Load environment variables from .env file
	if err := LoadEnv(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("Error loading .env file: %v\n", err)
		return
	}

	cfg, err := LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run(ctx)

	// Initialize services
	authService := services.NewAuthService(cfg.Auth)
	boardService := services.NewBoardService(store, hub)
	inviteService := services.NewInviteService(store, cfg.Auth.SMTP)
	archiveService, err := openArchive(ctx, cfg.S3, boardService)
	if err != nil {
		log.Fatalf("Failed to initialize S3 archive: %v", err)
	}

	router := handlers.NewRouter(
		handlers.NewAuthHandler(authService, store),
		handlers.NewBoardHandler(boardService, archiveService, hub),
		handlers.NewInviteHandler(inviteService),
		handlers.NewAuthMiddleware(authService),
	)

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}

func openStore(ctx context.Context, cfg DatabaseConfig) (database.Store, error) {
	if cfg.Driver == "postgres" {
		store, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		stat := store.Stat()
		log.Printf("Connected to Postgres (pool size %d)", stat.MaxConns())
		return store, nil
	}
	return database.InitDB(ctx, cfg.Path)
}

// openArchive returns an archive service that is disabled unless a bucket
// is configured.
func openArchive(ctx context.Context, cfg services.S3Config, boards *services.BoardService) (*services.ArchiveService, error) {
	if !cfg.Enabled() {
		return services.NewArchiveService(nil, "", boards), nil
	}

	client, err := services.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	archive := services.NewArchiveService(client, cfg.Bucket, boards)
	if err := archive.EnsureBucketExists(ctx); err != nil {
		return nil, err
	}
	log.Printf("Archiving boards to bucket %s", cfg.Bucket)
	return archive, nil
}
