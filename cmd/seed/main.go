// Command seed fills the database with demo data.
package main

import (
	"context"
	"flag"
	"log"

	"sutnist/internal/bootstrap"
	"sutnist/internal/config"
	"sutnist/internal/seed"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	_ = godotenv.Load()

	users := flag.Int("users", 20, "number of random users")
	posts := flag.Int("posts", 100, "number of random posts")
	maxDays := flag.Int("days", 30, "spread created_at over this many days")
	approved := flag.Float64("approved", 0.7, "share of random posts that are approved")
	fixture := flag.String("fixture", "", `YAML fixture to apply first ("demo" for the bundled one)`)
	clean := flag.Bool("clean", false, "delete existing data first")
	fast := flag.Bool("fast", false, "use the minimum bcrypt cost")
	dryRun := flag.Bool("dry-run", false, "generate without writing")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	if *clean && !*dryRun {
		if err := seed.Clean(ctx, db); err != nil {
			log.Fatalf("Failed to clean database: %v", err)
		}
		// the seed admin was removed with everything else
		if err := bootstrap.EnsureSeedAdmin(ctx, cfg, db); err != nil {
			log.Fatalf("Failed to provision seed admin: %v", err)
		}
	}

	if *fixture != "" && !*dryRun {
		fx, err := seed.LoadFixture(*fixture)
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
		cost := bcrypt.DefaultCost
		if *fast {
			cost = bcrypt.MinCost
		}
		res, err := seed.ApplyFixture(ctx, db, fx, cost)
		if err != nil {
			log.Fatalf("Failed to apply fixture: %v", err)
		}
		log.Printf("✓ fixture: %d users, %d posts", res.UsersCreated, res.PostsCreated)
	}

	res, err := seed.Seed(ctx, db, seed.Options{
		Users:         *users,
		Posts:         *posts,
		MaxDays:       *maxDays,
		ApprovedRatio: *approved,
		SkipBcrypt:    *fast,
		DryRun:        *dryRun,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("✓ %d users, %d posts (%d approved), %d likes, %d views, %d comments",
		res.Users, res.Posts, res.Approved, res.Likes, res.Views, res.Comments)
}
