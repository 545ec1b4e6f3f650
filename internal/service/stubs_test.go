package service

import (
	"context"
	"testing"

	"inkwell/internal/models"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	listFn    func(context.Context) ([]*models.Post, error)
	getByIDFn func(context.Context, uint) (*models.Post, error)
	createFn  func(context.Context, *models.Post) error
	updateFn  func(context.Context, *models.Post) error
	deleteFn  func(context.Context, uint) error
	countFn   func(context.Context) (int64, error)
}

func (s *postRepoStub) List(ctx context.Context) ([]*models.Post, error) {
	return s.listFn(ctx)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) Count(ctx context.Context) (int64, error) {
	return s.countFn(ctx)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		listFn:    func(_ context.Context) ([]*models.Post, error) { return nil, nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		createFn:  func(_ context.Context, _ *models.Post) error { return nil },
		updateFn:  func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:  func(_ context.Context, _ uint) error { return nil },
		countFn:   func(_ context.Context) (int64, error) { return 0, nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	listByPostFn func(context.Context, uint) ([]models.Comment, error)
	countFn      func(context.Context) (int64, error)
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) Count(ctx context.Context) (int64, error) {
	return s.countFn(ctx)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:     func(_ context.Context, _ *models.Comment) error { return nil },
		listByPostFn: func(_ context.Context, _ uint) ([]models.Comment, error) { return nil, nil },
		countFn:      func(_ context.Context) (int64, error) { return 0, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	createFn         func(context.Context, *models.User) error
	createAccountFn  func(context.Context, *models.User) error
	updatePasswordFn func(context.Context, uint, string) error
	promoteIfFirstFn func(context.Context, uint) (bool, error)
	setAdminFn       func(context.Context, string, bool) (*models.User, error)
	listAdminsFn     func(context.Context) ([]models.User, error)
	countFn          func(context.Context) (int64, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) CreateAccount(ctx context.Context, user *models.User) error {
	return s.createAccountFn(ctx, user)
}
func (s *userRepoStub) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return s.updatePasswordFn(ctx, id, hash)
}
func (s *userRepoStub) PromoteIfFirst(ctx context.Context, id uint) (bool, error) {
	return s.promoteIfFirstFn(ctx, id)
}
func (s *userRepoStub) SetAdmin(ctx context.Context, email string, isAdmin bool) (*models.User, error) {
	return s.setAdminFn(ctx, email, isAdmin)
}
func (s *userRepoStub) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.listAdminsFn(ctx)
}
func (s *userRepoStub) Count(ctx context.Context) (int64, error) {
	return s.countFn(ctx)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:        func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByEmailFn:     func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn:         func(_ context.Context, u *models.User) error { u.ID = 1; return nil },
		createAccountFn:  func(_ context.Context, u *models.User) error { u.ID = 1; return nil },
		updatePasswordFn: func(_ context.Context, _ uint, _ string) error { return nil },
		promoteIfFirstFn: func(_ context.Context, _ uint) (bool, error) { return false, nil },
		setAdminFn:       func(_ context.Context, _ string, _ bool) (*models.User, error) { return nil, nil },
		listAdminsFn:     func(_ context.Context) ([]models.User, error) { return nil, nil },
		countFn:          func(_ context.Context) (int64, error) { return 0, nil },
	}
}

func adminOnly(adminID uint) func(context.Context, uint) (bool, error) {
	return func(_ context.Context, userID uint) (bool, error) {
		return userID == adminID, nil
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if !models.IsCode(err, code) {
		t.Errorf("expected AppError %s, got %v", code, err)
	}
}
