package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/duet/chat-app/internal/config"
	"github.com/duet/chat-app/internal/messaging"
	"github.com/duet/chat-app/internal/report"
)

func main() {
	log.Println("Starting Duet moderator service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Postgres is optional: without it the service only logs the feed.
	var store *report.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open Postgres: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("failed to connect to Postgres: %v", err)
		}
		if err := report.Migrate(db); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		store = report.NewStore(db)
		defer db.Close()
	} else {
		log.Println("DATABASE_URL not set, running without the audit store")
	}

	natsConfig := messaging.DefaultConfig()
	natsConfig.URL = cfg.NatsURL
	natsConfig.Name = "duet-moderator"
	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	err = natsClient.SubscribeReports(func(ev messaging.ReportEvent) {
		log.Printf("[moderator] REPORT reporter=%s reported=%s count=%d",
			ev.ReporterID, ev.ReportedID, ev.Count)

		if store == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.RecordReport(ctx, report.Report{
			ReporterID:  ev.ReporterID,
			ReportedID:  ev.ReportedID,
			ReportCount: ev.Count,
		}); err != nil {
			log.Printf("[moderator] persist report: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to report events: %v", err)
	}

	err = natsClient.SubscribeBans(func(ev messaging.BanEvent) {
		log.Printf("[moderator] BAN user=%s count=%d until=%s",
			ev.UserID, ev.Count, ev.BanUntil.Format(time.RFC3339))

		if store == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.RecordBan(ctx, report.Ban{
			UserID:      ev.UserID,
			ReportCount: ev.Count,
			BanUntil:    ev.BanUntil,
		}); err != nil {
			log.Printf("[moderator] persist ban: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to ban events: %v", err)
	}

	log.Printf("Duet moderator service running")
	log.Printf("  nats_url: %s", cfg.NatsURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
}
