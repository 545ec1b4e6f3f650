package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID uint = 1

func fixedClock() time.Time {
	return time.Date(2024, time.August, 3, 10, 0, 0, 0, time.UTC)
}

func newTestCache(t *testing.T) (*cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewStore(client, time.Minute), mr
}

func TestPostService_CreatePost(t *testing.T) {
	ctx := context.Background()

	t.Run("admin creates post dated today with body as submitted", func(t *testing.T) {
		repo := noopPostRepo()
		var saved *models.Post
		repo.createFn = func(_ context.Context, p *models.Post) error {
			p.ID = 10
			saved = p
			return nil
		}
		svc := NewPostService(repo, nil, adminOnly(adminID)).WithClock(fixedClock)

		post, err := svc.CreatePost(ctx, CreatePostInput{
			ActorID:  adminID,
			Title:    "Hello",
			Subtitle: "World",
			Body:     `<p style="text-align:center">Tom &amp; Jerry</p>`,
			ImgURL:   "https://example.com/a.jpg",
		})
		require.NoError(t, err)
		assert.Equal(t, uint(10), post.ID)
		assert.Equal(t, "August 03, 2024", saved.Date)
		assert.Equal(t, adminID, saved.AuthorID)
		assert.Equal(t, `<p style="text-align:center">Tom &amp; Jerry</p>`, saved.Body)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		repo := noopPostRepo()
		repo.createFn = func(_ context.Context, _ *models.Post) error {
			t.Fatal("repository must not be called")
			return nil
		}
		svc := NewPostService(repo, nil, adminOnly(adminID))

		for _, actor := range []uint{0, 2} {
			_, err := svc.CreatePost(ctx, CreatePostInput{ActorID: actor, Title: "x"})
			assertCode(t, err, models.CodeForbidden)
		}
	})

	t.Run("duplicate title", func(t *testing.T) {
		repo := noopPostRepo()
		repo.createFn = func(_ context.Context, _ *models.Post) error {
			return models.NewConflictError("exists")
		}
		_, err := NewPostService(repo, nil, adminOnly(adminID)).CreatePost(ctx, CreatePostInput{ActorID: adminID, Title: "Dup"})
		assertCode(t, err, models.CodeConflict)
		assert.ErrorIs(t, err, ErrDuplicateTitle)
	})

	t.Run("admin lookup failure", func(t *testing.T) {
		boom := errors.New("db down")
		svc := NewPostService(noopPostRepo(), nil, func(context.Context, uint) (bool, error) { return false, boom })
		_, err := svc.CreatePost(ctx, CreatePostInput{ActorID: adminID})
		assert.ErrorIs(t, err, boom)
	})
}

func TestPostService_UpdatePost(t *testing.T) {
	ctx := context.Background()
	original := func() *models.Post {
		return &models.Post{ID: 5, Title: "Old", Subtitle: "old", Body: "old", ImgURL: "u", Date: "May 01, 2024", AuthorID: adminID}
	}

	t.Run("updates only content fields", func(t *testing.T) {
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) { return original(), nil }
		var saved *models.Post
		repo.updateFn = func(_ context.Context, p *models.Post) error { saved = p; return nil }

		svc := NewPostService(repo, nil, adminOnly(adminID)).WithClock(fixedClock)
		_, err := svc.UpdatePost(ctx, UpdatePostInput{
			ActorID: adminID, PostID: 5, Title: "New", Subtitle: "new", Body: "<b>new</b>", ImgURL: "https://x.test/y.png",
		})
		require.NoError(t, err)
		assert.Equal(t, "New", saved.Title)
		assert.Equal(t, "<b>new</b>", saved.Body)
		assert.Equal(t, "May 01, 2024", saved.Date)
		assert.Equal(t, adminID, saved.AuthorID)
		assert.Equal(t, uint(5), saved.ID)
	})

	t.Run("missing post", func(t *testing.T) {
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
			return nil, models.NewNotFoundError("Post", id)
		}
		_, err := NewPostService(repo, nil, adminOnly(adminID)).UpdatePost(ctx, UpdatePostInput{ActorID: adminID, PostID: 9})
		assertCode(t, err, models.CodeNotFound)
	})

	t.Run("forbidden before lookup", func(t *testing.T) {
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) {
			t.Fatal("lookup must not happen for non-admins")
			return nil, nil
		}
		_, err := NewPostService(repo, nil, adminOnly(adminID)).UpdatePost(ctx, UpdatePostInput{ActorID: 3, PostID: 5})
		assertCode(t, err, models.CodeForbidden)
	})
}

func TestPostService_DeletePost(t *testing.T) {
	ctx := context.Background()

	repo := noopPostRepo()
	var deleted []uint
	repo.deleteFn = func(_ context.Context, id uint) error {
		if id == 404 {
			return models.NewNotFoundError("Post", id)
		}
		deleted = append(deleted, id)
		return nil
	}
	svc := NewPostService(repo, nil, adminOnly(adminID))

	require.NoError(t, svc.DeletePost(ctx, DeletePostInput{ActorID: adminID, PostID: 7}))
	assert.Equal(t, []uint{7}, deleted)

	assertCode(t, svc.DeletePost(ctx, DeletePostInput{ActorID: adminID, PostID: 404}), models.CodeNotFound)
	assertCode(t, svc.DeletePost(ctx, DeletePostInput{ActorID: 2, PostID: 7}), models.CodeForbidden)
	assert.Len(t, deleted, 1)
}

func TestPostService_GetPost(t *testing.T) {
	svc := NewPostService(noopPostRepo(), nil, adminOnly(adminID))

	_, err := svc.GetPost(context.Background(), 0)
	assertCode(t, err, models.CodeNotFound)

	post, err := svc.GetPost(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, uint(3), post.ID)
}

func TestPostService_CachesReadsAndInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestCache(t)

	listCalls, getCalls := 0, 0
	repo := noopPostRepo()
	repo.listFn = func(_ context.Context) ([]*models.Post, error) {
		listCalls++
		return []*models.Post{{ID: 1, Title: "Cached"}}, nil
	}
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		getCalls++
		return &models.Post{ID: id, Title: "Cached"}, nil
	}
	svc := NewPostService(repo, store, adminOnly(adminID))

	for i := 0; i < 2; i++ {
		posts, err := svc.ListPosts(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "Cached", posts[0].Title)

		post, err := svc.GetPost(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Cached", post.Title)
	}
	assert.Equal(t, 1, listCalls)
	assert.Equal(t, 1, getCalls)
	assert.True(t, mr.Exists(cache.PostsListKey))
	assert.True(t, mr.Exists(cache.PostKey(1)))

	require.NoError(t, svc.DeletePost(ctx, DeletePostInput{ActorID: adminID, PostID: 1}))
	assert.False(t, mr.Exists(cache.PostsListKey))
	assert.False(t, mr.Exists(cache.PostKey(1)))
}
