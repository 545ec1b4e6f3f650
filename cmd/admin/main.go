// Command admin grants and revokes the blog administrator role.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin promote <email>   - Promote user to admin")
		fmt.Println("  go run ./cmd/admin demote <email>    - Demote user from admin")
		fmt.Println("  go run ./cmd/admin list-admins       - List all admins")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	users := repository.NewUserRepository(db)
	ctx := context.Background()

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin %s <email>\n", command)
			os.Exit(1)
		}
		setAdmin(ctx, users, os.Args[2], command == "promote")
	case "list-admins":
		listAdmins(ctx, users)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func setAdmin(ctx context.Context, users repository.UserRepository, email string, isAdmin bool) {
	user, err := users.SetAdmin(ctx, strings.ToLower(strings.TrimSpace(email)), isAdmin)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			fmt.Printf("User with email %s not found\n", email)
			os.Exit(1)
		}
		log.Fatalf("Failed to update user: %v", err)
	}

	verb := "promoted"
	if !isAdmin {
		verb = "demoted"
	}
	fmt.Printf("Successfully %s %s (ID: %d)\n", verb, user.Email, user.ID)
}

func listAdmins(ctx context.Context, users repository.UserRepository) {
	admins, err := users.ListAdmins(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found")
		return
	}

	fmt.Println("Current admins:")
	for _, admin := range admins {
		fmt.Printf("ID: %d | Name: %s | Email: %s\n", admin.ID, admin.Name, admin.Email)
	}
}
