// Package main provides admin management utilities for Сутність.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"sutnist/internal/bootstrap"
	"sutnist/internal/config"
	"sutnist/internal/database"
	"sutnist/internal/repository"
	"sutnist/internal/service"

	"github.com/joho/godotenv"
)

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin provision              - Create or promote SEED_ADMIN_USERNAME")
	fmt.Println("  go run ./cmd/admin promote <username>     - Promote user to admin")
	fmt.Println("  go run ./cmd/admin demote <username>      - Demote user from admin")
	fmt.Println("  go run ./cmd/admin list-admins            - List all admins")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	identity := service.NewIdentityService(repository.NewStore(db), nil)

	switch command := os.Args[1]; command {
	case "provision":
		if cfg.SeedAdminUsername == "" {
			log.Fatal("SEED_ADMIN_USERNAME and SEED_ADMIN_PASSWORD must be set")
		}
		if err := bootstrap.EnsureSeedAdmin(ctx, cfg, db); err != nil {
			log.Fatalf("Failed to provision admin: %v", err)
		}
		fmt.Printf("✓ %s is an admin\n", cfg.SeedAdminUsername)

	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin %s <username>\n", command)
			os.Exit(1)
		}
		user, err := identity.SetAdminByUsername(ctx, os.Args[2], command == "promote")
		if err != nil {
			log.Fatalf("Failed to %s %s: %v", command, os.Args[2], err)
		}
		fmt.Printf("✓ %s (ID: %d) is_admin=%t\n", user.Username, user.ID, user.IsAdmin)

	case "list-admins":
		admins, err := identity.ListAdmins(ctx)
		if err != nil {
			log.Fatalf("Failed to list admins: %v", err)
		}
		if len(admins) == 0 {
			fmt.Println("No admins found")
			return
		}
		fmt.Printf("Found %d admin(s):\n", len(admins))
		for _, admin := range admins {
			fmt.Printf("  - ID: %d, Username: %s, Display name: %s\n", admin.ID, admin.Username, admin.DisplayName)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}
