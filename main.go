package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/koas-web/koasbackend/config"
	"github.com/koas-web/koasbackend/database"
	"github.com/koas-web/koasbackend/handlers"
	"github.com/koas-web/koasbackend/media"
	"github.com/koas-web/koasbackend/repository"
	"github.com/koas-web/koasbackend/sessions"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.PhotosPath, cfg.SessionsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}
	if err := database.SeedAdmin(db, cfg); err != nil {
		log.Fatalf("FATAL: Failed to seed admin user: %v", err)
	}

	sessionMgr := sessions.NewManager(cfg.SessionsPath, cfg.SessionSecret, cfg.CookieSecure, sessions.DefaultTTL)

	processor, err := media.NewProcessor(cfg.PhotosPath, cfg.JpegQuality)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize photo processor: %v", err)
	}

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing photos in: %s", cfg.PhotosPath)
	log.Printf("Storing sessions in: %s", cfg.SessionsPath)

	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	adminRepo := repository.NewGormAdminUserRepository(db)
	memberRepo := repository.NewGormTeamMemberRepository(db)
	api := handlers.NewAPI(cfg, adminRepo, memberRepo, sessionMgr, processor)

	r.Get("/healthz", handlers.Healthz)
	r.Mount("/api", api.Routes())
	r.Get(cfg.PublicPhotoPrefix+"/*", handlers.PhotoServer(cfg.PublicPhotoPrefix, cfg.PhotosPath))
	log.Printf("Registered photo server at %s/*", cfg.PublicPhotoPrefix)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// serve HTTPS alongside plain HTTP when an origin certificate is present
	if fileExists(cfg.TLSCertPath) && fileExists(cfg.TLSKeyPath) {
		httpsServer := &http.Server{
			Addr:         ":" + cfg.HTTPSPort,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}
		go func() {
			log.Printf("HTTPS server listening on :%s", cfg.HTTPSPort)
			if err := httpsServer.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath); err != nil {
				log.Fatalf("FATAL: HTTPS server failed: %v", err)
			}
		}()
	} else if cfg.Environment == "production" {
		log.Printf("Warning: TLS certificate not found at %s; serving plain HTTP only", cfg.TLSCertPath)
	}

	log.Printf("Server listening on :%s", cfg.Port)
	log.Fatal(httpServer.ListenAndServe())
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
