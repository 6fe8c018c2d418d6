package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	"github.com/leafsii/post-api/internal/config"
	"github.com/leafsii/post-api/internal/store/postgres"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	flags = flag.NewFlagSet("migrate", flag.ExitOnError)
	dir   = flags.String("dir", "", "directory with migration files (defaults to the embedded set)")
)

func main() {
	flags.Parse(os.Args[1:])
	args := flags.Args()

	if len(args) < 1 {
		log.Fatal("Usage: migrate [-dir DIR] COMMAND\n\nCommands:\n  up\n  down\n  status")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("pgx", cfg.Store.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}

	migrations := *dir
	if migrations == "" {
		goose.SetBaseFS(postgres.Migrations)
		migrations = postgres.MigrationsDir
	}

	ctx := context.Background()
	command := args[0]
	switch command {
	case "up":
		if err := goose.UpContext(ctx, db, migrations); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
	case "down":
		if err := goose.DownContext(ctx, db, migrations); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
	case "status":
		if err := goose.StatusContext(ctx, db, migrations); err != nil {
			log.Fatalf("Migration status failed: %v", err)
		}
	default:
		log.Fatalf("Unknown command: %s", command)
	}
}
