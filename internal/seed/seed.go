package seed

import (
	"context"
	"fmt"
	"log/slog"

	"inkwell/internal/auth"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumReaders      int
	NumPosts        int
	CommentsPerPost int
	ShouldClean     bool
	// Seed makes the generated content reproducible; zero draws a random seed.
	Seed int64
	// AdminEmail is the account that authors every post. It is created when missing.
	AdminEmail string
	Hasher     *auth.PasswordHasher
}

// Result summarizes what a seeding run created.
type Result struct {
	Admin    *models.User
	Readers  []*models.User
	Posts    []*models.Post
	Comments int
}

// Seed populates the database with an administrator, readers, posts and comments.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	middleware.Logger.Info("Starting database seeding",
		slog.Int("readers", opts.NumReaders),
		slog.Int("posts", opts.NumPosts),
		slog.Int("comments_per_post", opts.CommentsPerPost),
	)

	if opts.ShouldClean {
		if err := ClearAll(ctx, db); err != nil {
			return nil, fmt.Errorf("failed to clear existing data: %w", err)
		}
	}

	f := NewFactory(db, opts.Seed, opts.Hasher)
	res := &Result{}

	admin, err := ensureAdmin(ctx, db, f, opts.AdminEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure admin: %w", err)
	}
	res.Admin = admin

	for i := 0; i < opts.NumReaders; i++ {
		user, err := f.CreateUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create reader: %w", err)
		}
		res.Readers = append(res.Readers, user)
	}

	// Reserve titles that already exist so reruns without cleaning do not collide.
	var existing []string
	if err := db.WithContext(ctx).Model(&models.Post{}).Pluck("title", &existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load existing titles: %w", err)
	}
	for _, title := range existing {
		f.titles[title] = struct{}{}
	}

	for i := 0; i < opts.NumPosts; i++ {
		post, err := f.CreatePost(ctx, admin)
		if err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		res.Posts = append(res.Posts, post)

		comments, err := f.CreateComments(ctx, post, res.Readers, opts.CommentsPerPost)
		if err != nil {
			return nil, fmt.Errorf("failed to create comments: %w", err)
		}
		res.Comments += len(comments)
	}

	middleware.Logger.Info("Seeding complete",
		slog.String("admin", admin.Email),
		slog.Int("readers", len(res.Readers)),
		slog.Int("posts", len(res.Posts)),
		slog.Int("comments", res.Comments),
	)
	return res, nil
}

// ensureAdmin returns the account with email, creating it when needed, and makes sure it is an admin.
// Without an email the first existing admin is reused or a fresh one is generated.
func ensureAdmin(ctx context.Context, db *gorm.DB, f *Factory, email string) (*models.User, error) {
	var admin models.User
	query := db.WithContext(ctx)
	if email != "" {
		query = query.Where("email = ?", email)
	} else {
		query = query.Where("is_admin = ?", true).Order("id")
	}

	err := query.Limit(1).Find(&admin).Error
	if err != nil {
		return nil, err
	}

	if admin.ID == 0 {
		created, err := f.CreateUser(ctx, func(u *models.User) {
			if email != "" {
				u.Email = email
			}
			u.IsAdmin = true
		})
		if err != nil {
			return nil, err
		}
		return created, nil
	}

	if !admin.IsAdmin {
		if err := db.WithContext(ctx).Model(&admin).Update("is_admin", true).Error; err != nil {
			return nil, err
		}
		admin.IsAdmin = true
	}
	return &admin, nil
}

// ClearAll deletes every row from the blog tables, children first.
func ClearAll(ctx context.Context, db *gorm.DB) error {
	tables := database.ManagedTables()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := db.WithContext(ctx).Exec("DELETE FROM " + tables[i]).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", tables[i], err)
		}
	}
	middleware.Logger.Info("Cleared blog tables", slog.Any("tables", tables))
	return nil
}
