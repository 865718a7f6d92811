package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"equiplend/internal/config"
	"equiplend/internal/database"
)

// usage: migrate [up|down|status]
func main() {
	flag.Parse()
	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	provider, err := database.NewMigrator(db)
	if err != nil {
		log.Fatalf("migrator: %v", err)
	}

	ctx := context.Background()
	switch cmd {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			log.Fatalf("migrate up failed: %v", err)
		}
		for _, r := range results {
			log.Printf("applied %s (%s)", r.Source.Path, r.Duration)
		}
	case "down":
		r, err := provider.Down(ctx)
		if err != nil {
			log.Fatalf("migrate down failed: %v", err)
		}
		log.Printf("rolled back %s", r.Source.Path)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			log.Fatalf("migrate status failed: %v", err)
		}
		for _, s := range statuses {
			log.Printf("%-8s %s", s.State, s.Source.Path)
		}
	default:
		log.Printf("unknown command %q, expected up, down or status", cmd)
		os.Exit(2)
	}
}
