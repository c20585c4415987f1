package main

import (
	"flag"
	"log"
	"os"

	"github.com/gymsmart/gymsmart-backend/internal/config"
	"github.com/gymsmart/gymsmart-backend/internal/migration"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.local.yaml", "config file path")
	seed := flag.Bool("seed", false, "insert demo profiles when the table is empty")
	verify := flag.Bool("verify", false, "check stored messages for invariant violations")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	if files := config.LoadDotEnv(); len(files) == 0 {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := gormlogger.Warn
	if *verbose {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying DB: %v", err)
	}
	defer sqlDB.Close()

	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("[migrate] schema up to date")

	if *seed {
		if err := migration.SeedProfiles(db); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Println("[migrate] demo profiles seeded")
	}

	if *verify {
		report, err := migration.Verify(db)
		if err != nil {
			log.Fatalf("Verify failed: %v", err)
		}
		log.Printf("[verify] messages=%d edited_without_original=%d self_addressed=%d empty=%d",
			report.Messages, report.EditedWithoutText, report.SelfAddressed, report.Empty)
		if !report.OK() {
			os.Exit(1)
		}
	}
}
