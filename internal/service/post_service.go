package service

import (
	"context"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

type PostService struct {
	postRepo repository.PostRepository
	cache    *cache.Store
	isAdmin  func(ctx context.Context, userID uint) (bool, error)
	now      func() time.Time
}

type CreatePostInput struct {
	ActorID  uint
	Title    string
	Subtitle string
	Body     string
	ImgURL   string
}

type UpdatePostInput struct {
	ActorID  uint
	PostID   uint
	Title    string
	Subtitle string
	Body     string
	ImgURL   string
}

type DeletePostInput struct {
	ActorID uint
	PostID  uint
}

func NewPostService(
	postRepo repository.PostRepository,
	store *cache.Store,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *PostService {
	return &PostService{
		postRepo: postRepo,
		cache:    store,
		isAdmin:  isAdmin,
		now:      time.Now,
	}
}

// WithClock replaces the clock used to stamp new posts.
func (s *PostService) WithClock(now func() time.Time) *PostService {
	s.now = now
	return s
}

func (s *PostService) authorize(ctx context.Context, actorID uint) error {
	if actorID == 0 {
		return models.NewForbiddenError("Only the administrator can manage posts")
	}
	ok, err := s.isAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("Only the administrator can manage posts")
	}
	return nil
}

// ListPosts returns every post with its author, oldest first.
func (s *PostService) ListPosts(ctx context.Context) ([]*models.Post, error) {
	var posts []*models.Post
	err := s.cache.Aside(ctx, cache.PostsListKey, &posts, func() error {
		var fetchErr error
		posts, fetchErr = s.postRepo.List(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost returns a post with its author and comments.
func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	if id == 0 {
		return nil, models.NewNotFoundError("Post", id)
	}
	var post *models.Post
	err := s.cache.Aside(ctx, cache.PostKey(id), &post, func() error {
		var fetchErr error
		post, fetchErr = s.postRepo.GetByID(ctx, id)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	span, ctx := observability.StartSpan(ctx, "PostService", "CreatePost",
		attribute.Int64("actor.id", int64(in.ActorID)))
	defer func() { span.End(err) }()

	if err := s.authorize(ctx, in.ActorID); err != nil {
		return nil, err
	}

	post = &models.Post{
		Title:    in.Title,
		Subtitle: in.Subtitle,
		Body:     in.Body,
		ImgURL:   in.ImgURL,
		Date:     s.now().Format(models.PostDateLayout),
		AuthorID: in.ActorID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, titleConflict(err)
	}

	s.cache.Delete(ctx, cache.PostsListKey)
	observability.ContentMutations.WithLabelValues("post", "create").Inc()
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (post *models.Post, err error) {
	span, ctx := observability.StartSpan(ctx, "PostService", "UpdatePost",
		attribute.Int64("post.id", int64(in.PostID)))
	defer func() { span.End(err) }()

	if err := s.authorize(ctx, in.ActorID); err != nil {
		return nil, err
	}

	post, err = s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	post.Title = in.Title
	post.Subtitle = in.Subtitle
	post.Body = in.Body
	post.ImgURL = in.ImgURL
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, titleConflict(err)
	}

	s.cache.InvalidatePost(ctx, post.ID)
	observability.ContentMutations.WithLabelValues("post", "update").Inc()
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (err error) {
	span, ctx := observability.StartSpan(ctx, "PostService", "DeletePost",
		attribute.Int64("post.id", int64(in.PostID)))
	defer func() { span.End(err) }()

	if err := s.authorize(ctx, in.ActorID); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return err
	}

	s.cache.InvalidatePost(ctx, in.PostID)
	observability.ContentMutations.WithLabelValues("post", "delete").Inc()
	return nil
}

func titleConflict(err error) error {
	if models.IsCode(err, models.CodeConflict) {
		return models.NewConflictError("A post with that title already exists", ErrDuplicateTitle)
	}
	return err
}
