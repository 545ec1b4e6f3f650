package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commentForm(text string) url.Values {
	return url.Values{"comment_text": {text}}
}

func TestCreateComment_AnonymousRedirectsToLogin(t *testing.T) {
	env := newAdminEnv(t)
	path := "/post/" + strconv.Itoa(int(env.post.ID))

	resp := env.anon.post(path, commentForm("hello"))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.EqualValues(t, 0, env.count(t, &models.Comment{}))

	_, body := env.anon.page("/login")
	assert.Contains(t, body, msgLoginToComment)
}

func TestCreateComment_Authenticated(t *testing.T) {
	env := newAdminEnv(t)
	path := "/post/" + strconv.Itoa(int(env.post.ID))

	resp := env.reader.post(path, commentForm("  Great read!  "))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, path, resp.Header.Get("Location"))

	var comments []models.Comment
	require.NoError(t, env.db.Find(&comments).Error)
	require.Len(t, comments, 1)
	assert.Equal(t, "Great read!", comments[0].Text)
	assert.Equal(t, env.post.ID, comments[0].PostID)

	var reader models.User
	require.NoError(t, env.db.Where("email = ?", "reader@x.com").First(&reader).Error)
	assert.Equal(t, reader.ID, comments[0].AuthorID)

	_, body := env.anon.page(path)
	assert.Contains(t, body, "Great read!")
	assert.Contains(t, body, "Reader")
	assert.Contains(t, body, gravatarURL("reader@x.com")[:40])
}

func TestCreateComment_BlankRerenders(t *testing.T) {
	env := newAdminEnv(t)
	path := "/post/" + strconv.Itoa(int(env.post.ID))

	for _, text := range []string{"", "   \n\t "} {
		resp := env.reader.post(path, commentForm(text))
		body := readBody(t, resp)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, body, "This field is required.")
		assert.Contains(t, body, "First Post")
	}
	assert.EqualValues(t, 0, env.count(t, &models.Comment{}))
}

func TestCreateComment_TooLong(t *testing.T) {
	env := newAdminEnv(t)
	path := "/post/" + strconv.Itoa(int(env.post.ID))

	resp := env.reader.post(path, commentForm(strings.Repeat("a", 10001)))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.EqualValues(t, 0, env.count(t, &models.Comment{}))
}

func TestCreateComment_MissingPost(t *testing.T) {
	env := newAdminEnv(t)

	resp := env.reader.post("/post/999", commentForm("hello"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.reader.post("/post/999", commentForm(""))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.EqualValues(t, 0, env.count(t, &models.Comment{}))
}

func TestCreateComment_DisabledByFlag(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *config.Config) {
		cfg.FeatureFlags = "comments=off"
	})
	owner := env.createUser(t, "owner@x.com", "pw123", "Owner")
	post := env.createPost(t, owner, "Quiet Post")
	path := "/post/" + strconv.Itoa(int(post.ID))

	b := env.browser(t)
	b.login("owner@x.com", "pw123")

	resp := b.post(path, commentForm("hello"))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, path, resp.Header.Get("Location"))
	assert.EqualValues(t, 0, env.count(t, &models.Comment{}))

	_, body := b.page(path)
	assert.Contains(t, body, msgCommentsClosed)
	assert.NotContains(t, body, `name="comment_text"`)
}
