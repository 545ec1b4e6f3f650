// Command seed fills the blog database with generated demo content.
package main

import (
	"context"
	"flag"
	"log"

	"inkwell/internal/auth"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
)

func main() {
	numReaders := flag.Int("readers", 10, "Number of reader accounts to create")
	numPosts := flag.Int("posts", 20, "Number of posts to create")
	comments := flag.Int("comments", 4, "Comments per post")
	shouldClean := flag.Bool("clean", false, "Delete existing blog data before seeding")
	adminEmail := flag.String("admin", "", "Email of the account that authors the posts")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible content (0 = random)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	res, err := seed.Seed(context.Background(), db, seed.Options{
		NumReaders:      *numReaders,
		NumPosts:        *numPosts,
		CommentsPerPost: *comments,
		ShouldClean:     *shouldClean,
		Seed:            *randSeed,
		AdminEmail:      *adminEmail,
		Hasher:          auth.NewPasswordHasher(cfg.BcryptCost),
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Posts are authored by %s", res.Admin.Email)
	log.Printf("Generated accounts use the password: %s", seed.DefaultPassword)
}
