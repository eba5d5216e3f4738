package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/seed"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/migrations"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fatal(err.Error())
	}

	var (
		dbURL = flag.String("database-url", config.String("DATABASE_URL", ""), "postgres connection url")
		day   = flag.String("today", "", "anchor day for demo appointments (YYYY-MM-DD, default: today)")
		force = flag.Bool("force", false, "write demo data even when the database already holds records")
	)
	flag.Parse()

	if strings.TrimSpace(*dbURL) == "" {
		fatal("DATABASE_URL is required")
	}

	today := time.Now()
	if *day != "" {
		t, err := time.Parse(time.DateOnly, *day)
		if err != nil {
			fatal("invalid -today: " + err.Error())
		}
		today = t
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, *dbURL)
	if err != nil {
		fatal(err.Error())
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		fatal(err.Error())
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	seeded, err := seed.Load(ctx, storage.NewPostgres(pool, nil, logger), today, !*force, logger)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("seeded=%t\n", seeded)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
