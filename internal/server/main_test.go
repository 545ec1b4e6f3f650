package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
}

func testConfig() *config.Config {
	return &config.Config{
		Env:               "test",
		Host:              "127.0.0.1",
		Port:              "0",
		SessionSecret:     "test-session-secret-0123456789abcdef",
		SessionTTL:        time.Hour,
		DBDriver:          "sqlite",
		DatabaseURL:       ":memory:",
		DBSchemaMode:      database.SchemaModeSQL,
		CacheTTL:          time.Minute,
		PasswordMinLength: 5,
		BcryptCost:        bcrypt.MinCost,
		LoginRateLimit:    10,
		RegisterRateLimit: 3,
	}
}

// newTestEnv builds a server over a private in-memory database. mutate adjusts the config first.
func newTestEnv(t *testing.T, rdb *redis.Client, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	return &testEnv{srv: srv, app: srv.NewApp(), db: db}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// createUser registers an account directly through the auth service.
func (e *testEnv) createUser(t *testing.T, email, password, name string) *models.User {
	t.Helper()
	user, err := e.srv.authService.Register(context.Background(), service.RegisterInput{
		Email:    email,
		Name:     name,
		Password: password,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) createPost(t *testing.T, author *models.User, title string) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:    title,
		Subtitle: "Subtitle of " + title,
		Date:     "August 03, 2024",
		Body:     "<p>Body of " + title + "</p>",
		ImgURL:   "https://example.com/img.jpg",
		AuthorID: author.ID,
	}
	require.NoError(t, e.db.Create(post).Error)
	return post
}

func (e *testEnv) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

// browser drives the app like a user agent, carrying cookies between requests.
type browser struct {
	t   *testing.T
	app *fiber.App
	jar map[string]*http.Cookie
}

func (e *testEnv) browser(t *testing.T) *browser {
	return &browser{t: t, app: e.app, jar: map[string]*http.Cookie{}}
}

func (b *browser) do(method, path string, form url.Values) *http.Response {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, ck := range b.jar {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	resp, err := b.app.Test(req, -1)
	require.NoError(b.t, err)

	for _, ck := range resp.Cookies() {
		expired := ck.MaxAge < 0 || (!ck.Expires.IsZero() && ck.Expires.Before(time.Now()))
		if expired || ck.Value == "" {
			delete(b.jar, ck.Name)
			continue
		}
		b.jar[ck.Name] = ck
	}
	return resp
}

func (b *browser) get(path string) *http.Response {
	b.t.Helper()
	return b.do(http.MethodGet, path, nil)
}

func (b *browser) post(path string, form url.Values) *http.Response {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	return b.do(http.MethodPost, path, form)
}

// page fetches path and returns its status and body.
func (b *browser) page(path string) (int, string) {
	b.t.Helper()
	resp := b.get(path)
	return resp.StatusCode, readBody(b.t, resp)
}

func (b *browser) register(email, password, name string) *http.Response {
	b.t.Helper()
	return b.post("/register", url.Values{"email": {email}, "password": {password}, "name": {name}})
}

func (b *browser) login(email, password string) *http.Response {
	b.t.Helper()
	return b.post("/login", url.Values{"email": {email}, "password": {password}})
}

func (b *browser) hasSession() bool {
	_, ok := b.jar["session"]
	return ok
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func postForm(title string) url.Values {
	return url.Values{
		"title":    {title},
		"subtitle": {"A subtitle"},
		"img_url":  {"https://example.com/cover.jpg"},
		"body":     {"<p>Hello <strong>world</strong></p>"},
	}
}
