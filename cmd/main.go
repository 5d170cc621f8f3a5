package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"civicpulse/backend/internal/api/handler"
	"civicpulse/backend/internal/config"
	"civicpulse/backend/internal/geomatch"
	"civicpulse/backend/internal/images"
	"civicpulse/backend/internal/lifecycle"
	"civicpulse/backend/internal/livefeed"
	"civicpulse/backend/internal/models"
	"civicpulse/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.Complaint{},
		&models.AuthorityUser{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting CivicPulse Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	// 1. Dependencies
	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	// 2. Services
	matcher := geomatch.NewMatcher(s)
	lc := lifecycle.NewService(s, matcher, cfg)
	hub := livefeed.NewHub(rdb)
	pipeline := images.NewLocalPipeline("/uploads")

	go hub.Run()

	// 3. Gin routing
	r := gin.Default()
	h := handler.NewHandler(lc, s, hub, pipeline, cfg)

	// Public routes
	r.GET("/metrics", h.Metrics)
	r.GET("/complaints", h.ListComplaints)
	r.GET("/complaints/:id", h.GetComplaint)
	r.POST("/complaints", h.SubmitComplaint)
	r.POST("/complaints/:id/no-progress", h.NoProgressUpdate)
	r.GET("/ws/feed", h.ServeFeed)

	// Authority routes
	authority := r.Group("/authority")
	authority.POST("/login", h.Login)
	authority.Use(h.RequireAuthority())
	{
		authority.GET("/complaints", h.AuthorityListComplaints)
		authority.POST("/complaints/:id/start-progress", h.StartProgress)
		authority.POST("/complaints/:id/progress", h.RecordProgress)
		authority.POST("/complaints/:id/hold", h.PutOnHold)
		authority.POST("/complaints/:id/resolve", h.ResolveComplaint)
		authority.POST("/complaints/:id/merge", h.MergeComplaint)
	}

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
