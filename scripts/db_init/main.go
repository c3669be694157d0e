package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	dbfs "github.com/garnizeh/hireflow/db"
	"github.com/garnizeh/hireflow/internal/config"
	"github.com/garnizeh/hireflow/internal/db"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	adminPassword := flag.String("admin-password", "", "Print the bcrypt hash for this admin password")
	flag.Parse()

	_ = godotenv.Load()

	ctx := context.Background()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		fmt.Fprintf(os.Stderr, "Migration runner error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Database %s initialized successfully.\n", cfg.DatabasePath)

	if *adminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*adminPassword), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Hash error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("HIREFLOW_ADMIN_PASSWORD_HASH=%s\n", hash)
	}
}
