package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"event-ticketing/internal/config"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/storage"
)

func main() {
	envFlag := flag.String("env", "dev", "Environment (dev, test, prod)")
	envFileFlag := flag.String("env-file", "", "Path to .env file")
	driverFlag := flag.String("driver", "", "Override DB_DRIVER (mysql or postgres)")
	timeoutFlag := flag.Duration("timeout", time.Minute, "Migration timeout")
	flag.Parse()

	loadEnv(*envFlag, *envFileFlag)

	log := logger.NewLogger()
	defer log.Close()

	cfg := config.Load()
	if *driverFlag != "" {
		cfg.Database.Driver = *driverFlag
	}
	cfg.Database.AutoMigrate = false
	if cfg.Database.Driver == "memory" {
		log.Warn("MIGRATE", "In-memory store has no schema, nothing to do")
		return
	}

	store, err := storage.New(cfg.Database, log)
	if err != nil {
		log.Fatal("MIGRATE", "Failed to connect to database: "+err.Error())
	}
	defer store.Close()

	migrator, ok := store.(storage.Migrator)
	if !ok {
		log.Fatal("MIGRATE", fmt.Sprintf("Driver %s does not support migrations", cfg.Database.Driver))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	if err := migrator.Migrate(ctx); err != nil {
		log.Error("MIGRATE", "Migration failed: "+err.Error())
		os.Exit(1)
	}
	log.Info("MIGRATE", "Migration completed successfully")
}

// loadEnv tries the explicit file, then .env.<env>, then .env.
func loadEnv(env, envFile string) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err == nil {
			fmt.Printf("Loaded environment from %s\n", envFile)
			return
		}
	}

	envSpecificFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envSpecificFile); err == nil {
		fmt.Printf("Loaded environment from %s\n", envSpecificFile)
		return
	}

	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment from .env")
		return
	}

	fmt.Println("No .env file found, using default or system environment variables")
}
