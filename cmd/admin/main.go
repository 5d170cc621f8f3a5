// Operator CLI: runs the overdue sweep (for cron) and seeds authority
// accounts.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"civicpulse/backend/internal/config"
	"civicpulse/backend/internal/models"
	"civicpulse/backend/internal/notifier"
	"civicpulse/backend/internal/storage"
	"civicpulse/backend/internal/sweep"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	storageSvc := storage.NewStorageService(db, rdb)

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: sweep | create-authority <email> <password> <name> [state] [city]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sweep":
		n, err := notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Printf("WARNING: Telegram notifier unavailable: %v", err)
		}
		sw := sweep.NewSweeper(storageSvc, cfg, n)
		if err := sw.RunOverdueSweep(context.Background()); err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
	case "create-authority":
		if len(os.Args) < 5 {
			fmt.Println("Usage: admin create-authority <email> <password> <name> [state] [city]")
			os.Exit(1)
		}
		user := &models.AuthorityUser{
			Email: os.Args[2],
			Name:  os.Args[4],
		}
		if len(os.Args) > 5 {
			user.State = os.Args[5]
		}
		if len(os.Args) > 6 {
			user.City = os.Args[6]
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[3]), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Error hashing password: %v", err)
		}
		user.PasswordHash = string(hash)
		if err := db.Create(user).Error; err != nil {
			log.Fatalf("Error creating authority user: %v", err)
		}
		fmt.Printf("Authority user %s created with id %s.\n", user.Email, user.ID)
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}
