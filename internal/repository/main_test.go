package repository

import (
	"context"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newTestDB opens a migrated in-memory SQLite database private to the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(&config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		DatabaseURL:  ":memory:",
		DBSchemaMode: database.SchemaModeSQL,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Password: "hash", Name: "Reader"}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user
}

func createPost(t *testing.T, db *gorm.DB, authorID uint, title string) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:    title,
		Subtitle: "subtitle",
		Date:     "May 01, 2024",
		Body:     "<p>body</p>",
		ImgURL:   "https://example.com/a.jpg",
		AuthorID: authorID,
	}
	require.NoError(t, NewPostRepository(db).Create(context.Background(), post))
	return post
}
