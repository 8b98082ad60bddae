package main

import (
	"flag"
	"log"
	"time"

	"github.com/example/brickaria/internal/config"
	"github.com/example/brickaria/internal/database"
	"github.com/example/brickaria/internal/services"
)

// Removes used and expired one-time codes. Run from cron, e.g. daily:
//
//	cleanup -days 7
func main() {
	cfg := config.Load()

	days := flag.Int("days", cfg.OTPRetentionDays, "delete tokens older than this many days")
	flag.Parse()

	db := database.Connect(cfg.DatabaseURL)
	otp := services.NewOTPService(db, services.NewMailer(cfg), cfg.OTPTokenTTL)

	deleted, err := otp.CleanupTokens(time.Duration(*days) * 24 * time.Hour)
	if err != nil {
		log.Fatalf("token cleanup failed: %v", err)
	}

	log.Printf("deleted %d stale OTP tokens", deleted)
}
