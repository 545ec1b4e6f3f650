// Package seed provides helpers to create demo data for the blog database.
// These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"inkwell/internal/auth"
	"inkwell/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPassword is the password given to every seeded account.
const DefaultPassword = "password123"

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db     *gorm.DB
	faker  *gofakeit.Faker
	hasher *auth.PasswordHasher
	now    func() time.Time

	password string
	// pre-hashed DefaultPassword so bcrypt runs once per seeding run
	passwordHash string
	titles       map[string]struct{}
}

// NewFactory creates a Factory bound to db. A zero seed draws a random one.
func NewFactory(db *gorm.DB, seed int64, hasher *auth.PasswordHasher) *Factory {
	if hasher == nil {
		hasher = auth.NewPasswordHasher(0)
	}
	return &Factory{
		db:       db,
		faker:    gofakeit.New(seed),
		hasher:   hasher,
		now:      time.Now,
		password: DefaultPassword,
		titles:   make(map[string]struct{}),
	}
}

func (f *Factory) hashedPassword() (string, error) {
	if f.passwordHash != "" {
		return f.passwordHash, nil
	}
	hash, err := f.hasher.Hash(f.password)
	if err != nil {
		return "", err
	}
	f.passwordHash = hash
	return hash, nil
}

// BuildUser returns an unsaved user with a fake name and a unique-looking email.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.hashedPassword()
	if err != nil {
		return nil, err
	}

	first, last := f.faker.FirstName(), f.faker.LastName()
	user := &models.User{
		Name: first + " " + last,
		Email: fmt.Sprintf("%s.%s.%d@%s",
			emailPart(first), emailPart(last), f.faker.Number(100, 9999), strings.ToLower(f.faker.DomainName())),
		Password: hash,
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

func emailPart(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) && r < unicode.MaxASCII {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost returns an unsaved post by author with a title not yet used by this factory.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	n := f.faker.Number(2, 4)
	paragraphs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		paragraphs = append(paragraphs, "<p>"+f.faker.Paragraph(1, 4, 12, " ")+"</p>")
	}

	published := f.now().AddDate(0, 0, -f.faker.Number(0, 365))
	post := &models.Post{
		Title:    f.uniqueTitle(),
		Subtitle: strings.TrimSuffix(f.faker.Sentence(8), "."),
		Date:     published.Format(models.PostDateLayout),
		Body:     strings.Join(paragraphs, "\n"),
		ImgURL:   fmt.Sprintf("https://picsum.photos/seed/%s/1200/600", f.faker.UUID()),
		AuthorID: author.ID,
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

func (f *Factory) uniqueTitle() string {
	for {
		title := strings.TrimSuffix(f.faker.HipsterSentence(f.faker.Number(3, 6)), ".")
		if len(title) > 250 {
			title = title[:250]
		}
		if _, taken := f.titles[title]; !taken {
			f.titles[title] = struct{}{}
			return title
		}
	}
}

// CreatePost builds and persists a post.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)
	if err := f.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// BuildComment returns an unsaved comment by author on post.
func (f *Factory) BuildComment(post *models.Post, author *models.User) *models.Comment {
	return &models.Comment{
		Text:     f.faker.Sentence(f.faker.Number(5, 25)),
		AuthorID: author.ID,
		PostID:   post.ID,
	}
}

// CreateComments persists n comments on post from randomly chosen readers.
func (f *Factory) CreateComments(ctx context.Context, post *models.Post, readers []*models.User, n int) ([]*models.Comment, error) {
	if n <= 0 || len(readers) == 0 {
		return nil, nil
	}
	comments := make([]*models.Comment, 0, n)
	for i := 0; i < n; i++ {
		reader := readers[f.faker.Number(0, len(readers)-1)]
		comments = append(comments, f.BuildComment(post, reader))
	}
	if err := f.db.WithContext(ctx).Create(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}
