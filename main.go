// @title BizOps Questionnaire Sync API
// @version 1.0
// @description Questionnaire authoring with Google Forms conversion, response ingestion and Sheets export.

// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"bizops_backend/internal/app"
	"bizops_backend/internal/config"
	"bizops_backend/pkg/logger"
	"context"
	"flag"
	"log"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "run database migrations and exit")
	migrate := flag.Bool("migrate", false, "run database migrations on start even in release mode")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	if *migrateOnly {
		application.Close(context.Background())
		logger.Log.Info("Database migration finished")
		return
	}

	application.Run()
}
