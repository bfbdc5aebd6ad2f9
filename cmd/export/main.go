// Command export writes the approved feed for the community website to a JSON file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"sutnist/internal/config"
	"sutnist/internal/database"
	"sutnist/internal/export"
	"sutnist/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := flag.String("out", cfg.FeedExportPath, "destination file")
	serverFlag := flag.String("server", "", "only posts for this server (01..05); ALL posts are always included")
	limit := flag.Int("limit", export.DefaultLimit, "maximum number of posts")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	var server models.ServerTag
	if *serverFlag != "" {
		tag, ok := models.ParseServerTag(*serverFlag)
		if !ok {
			return fmt.Errorf("unknown server %q", *serverFlag)
		}
		server = tag
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := openExportDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	n, err := export.NewFeedExporter(db, cfg.PublicBaseURL).WriteFile(ctx, *out, server, *limit)
	if err != nil {
		return fmt.Errorf("export feed: %w", err)
	}
	log.Printf("wrote %d posts to %s", n, *out)
	return nil
}

func openExportDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if cfg.DBDriver == "sqlite" {
		gdb, err := database.Open(cfg, database.Dialector(cfg))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return export.FromGorm(gdb)
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", database.PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}
