package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/mfierros/potledger/internal/api"
	"github.com/mfierros/potledger/internal/config"
	"github.com/mfierros/potledger/internal/journal"
	"github.com/mfierros/potledger/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.DatabaseDSN(), log)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("Unable to apply schema: %v", err)
	}

	jnl := journal.New(st, log)
	handler := api.NewHandler(st, jnl, log)
	router := api.NewRouter(handler, log)

	// Nightly sweep: completed journals of long-settled sessions go away.
	vacuumAge := time.Duration(cfg.VacuumAgeDays) * 24 * time.Hour
	c := cron.New()
	if _, err := c.AddFunc(cfg.VacuumSchedule, func() {
		if _, err := st.VacuumJournal(context.Background(), vacuumAge); err != nil {
			log.WithError(err).Error("journal vacuum failed")
		}
	}); err != nil {
		log.Fatalf("Invalid vacuum schedule: %v", err)
	}
	c.Start()
	defer c.Stop()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)

	log.WithField("port", cfg.Port).Info("server starting")
	if err := http.ListenAndServe(":"+cfg.Port, corsHandler); err != nil {
		log.Fatal(err)
	}
}
