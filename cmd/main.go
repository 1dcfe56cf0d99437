package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"bookvault/internal/auth"
	"bookvault/internal/cache"
	"bookvault/internal/config"
	"bookvault/internal/handler"
	"bookvault/internal/repository"
	"bookvault/internal/service"
	"bookvault/internal/service/s3"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}
		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}
	return nil, err
}

func runMigrations(sourceURL, databaseURL string) error {
	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New(sourceURL, databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return err
	}
	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return err
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func main() {
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := connectWithRetry(appConfig.DBSource, 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig.MigrationURL, appConfig.DBSource); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Инициализация S3 клиента
	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}
	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	// Redis: кэш конфигурации и ограничитель запросов
	cacheConfig, err := cache.NewConfig(".redis.env")
	if err != nil {
		log.Fatalf("Failed to load redis config: %v", err)
	}
	appCache, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Printf("Redis unavailable, continuing without cache: %v", err)
		appCache = nil
	}
	defer appCache.Close()

	// Токены доступа
	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}
	tokens := auth.NewTokenManager(authConfig)

	// Инициализация репозиториев
	fileRepo := repository.NewFileRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	configRepo := repository.NewConfigRepository(db)
	bookRepo := repository.NewBookRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Инициализация сервисов
	configService := service.NewConfigService(configRepo, appCache)
	if err := configService.EnsureInitialized(context.Background()); err != nil {
		log.Fatalf("Failed to initialize system config: %v", err)
	}

	historyService := service.NewHistoryService(historyRepo, configService)
	versionService := service.NewVersionService(fileRepo, historyService, configService)
	validator := service.NewFileValidator(appConfig.MaxFileSizeBytes(), config.AllowedExtensionGroups())
	processor := service.NewContentProcessor()
	uploadService := service.NewUploadService(s3Client, validator, processor, versionService, historyService, fileRepo)
	bookService := service.NewBookService(bookRepo)
	userService := service.NewUserService(userRepo, tokens)

	// Инициализация хендлеров
	fileHandler := handler.NewFileHandler(uploadService, versionService, historyService, appConfig.MaxFileSizeBytes())
	authHandler := handler.NewAuthHandler(userService, tokens)
	bookHandler := handler.NewBookHandler(bookService)
	configHandler := handler.NewConfigHandler(configService, historyService)
	healthHandler := handler.NewHealthHandler(db, appCache)

	rateLimiter := cache.NewRateLimiter(appCache, cacheConfig.RateLimitRequests, time.Duration(cacheConfig.RateLimitWindow)*time.Second)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(rateLimiter.Middleware)

	r.Get("/health", healthHandler.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.PublicRoutes())

		r.Group(func(r chi.Router) {
			r.Use(tokens.Middleware)
			r.Mount("/users", authHandler.ProtectedRoutes())
			r.Mount("/files", fileHandler.Routes())
			r.Mount("/books", bookHandler.Routes())

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Mount("/config", configHandler.Routes())
			})
		})
	})

	httpServer := &http.Server{
		Addr:    appConfig.ServerAddress,
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting HTTP server on %s", appConfig.ServerAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Периодическая очистка истекшей истории. Канал останавливается
	// отдельно: чтение из quit здесь перехватило бы сигнал у main
	cleanupStop := make(chan struct{})
	cleanupTicker := time.NewTicker(1 * time.Hour)
	go func() {
		defer cleanupTicker.Stop()
		for {
			select {
			case <-cleanupTicker.C:
				ctx := context.Background()
				if !configService.GetBool(ctx, service.ConfigAutoCleanupHistory, true) {
					continue
				}
				policy := configService.RetentionPolicy(ctx)
				if _, err := historyService.PurgeExpired(ctx, policy); err != nil {
					log.Printf("Error during history cleanup: %v", err)
				}
			case <-cleanupStop:
				return
			}
		}
	}()

	<-quit
	close(cleanupStop)
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
