package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var csrfField = regexp.MustCompile(`name="_csrf" value="([^"]+)"`)

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.browser(t).get("/")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestCookiesAreEncrypted(t *testing.T) {
	env := newTestEnv(t, nil)
	b := env.browser(t)
	b.post("/login", url.Values{"email": {"nobody@x.com"}, "password": {"pw123"}})

	flash, ok := b.jar["flash"]
	require.True(t, ok)
	plain, err := json.Marshal([]session.Flash{{Category: session.FlashError, Message: msgUnknownEmail}})
	require.NoError(t, err)
	assert.NotEqual(t, base64.RawURLEncoding.EncodeToString(plain), flash.Value)
	assert.True(t, flash.HttpOnly)

	_, body := b.page("/login")
	assert.Contains(t, body, msgUnknownEmail)
}

func TestSessionCookieAttributes(t *testing.T) {
	env := newTestEnv(t, nil)
	b := env.browser(t)
	b.register("a@x.com", "pw123", "Ann")

	ck, ok := b.jar["session"]
	require.True(t, ok)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	assert.Equal(t, "/", ck.Path)
}

func TestCSRF(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *config.Config) {
		cfg.CSRFEnabled = true
	})
	env.createUser(t, "a@x.com", "pw123", "Ann")

	t.Run("missing token is rejected", func(t *testing.T) {
		b := env.browser(t)
		b.get("/login")
		resp := b.login("a@x.com", "pw123")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.False(t, b.hasSession())
	})

	t.Run("token from the form is accepted", func(t *testing.T) {
		b := env.browser(t)
		_, body := b.page("/login")
		match := csrfField.FindStringSubmatch(body)
		require.Len(t, match, 2)

		resp := b.post("/login", url.Values{
			"_csrf":    {match[1]},
			"email":    {"a@x.com"},
			"password": {"pw123"},
		})
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.True(t, b.hasSession())
	})

	t.Run("forged token is rejected", func(t *testing.T) {
		b := env.browser(t)
		b.get("/register")
		resp := b.post("/register", url.Values{
			"_csrf":    {"forged"},
			"email":    {"b@x.com"},
			"password": {"pw123"},
			"name":     {"Bob"},
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	assert.EqualValues(t, 1, env.count(t, &models.User{}))
}

// loginWithToken signs in through the login form, echoing its CSRF token.
func loginWithToken(t *testing.T, b *browser, email, password string) {
	t.Helper()
	_, body := b.page("/login")
	match := csrfField.FindStringSubmatch(body)
	require.Len(t, match, 2)
	b.post("/login", url.Values{"_csrf": {match[1]}, "email": {email}, "password": {password}})
	require.True(t, b.hasSession())
}

func TestCSRF_AdminPagesForNonAdmins(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *config.Config) {
		cfg.CSRFEnabled = true
	})
	env.createUser(t, "admin@x.com", "pw123", "Admin")
	env.createUser(t, "reader@x.com", "pw123", "Reader")

	t.Run("anonymous post gets the bare guard 403", func(t *testing.T) {
		resp := env.browser(t).post("/new-post", postForm("Sneaky"))
		body := readBody(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.NotContains(t, body, "<html")
		assert.NotContains(t, body, "The form has expired")
	})

	t.Run("signed-in reader gets the bare guard 403", func(t *testing.T) {
		b := env.browser(t)
		loginWithToken(t, b, "reader@x.com", "pw123")
		resp := b.post("/edit-post/1", postForm("Sneaky"))
		body := readBody(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.NotContains(t, body, "<html")
	})

	t.Run("admin without a token still fails the CSRF check", func(t *testing.T) {
		b := env.browser(t)
		loginWithToken(t, b, "admin@x.com", "pw123")
		resp := b.post("/new-post", postForm("Forged"))
		body := readBody(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Contains(t, body, "The form has expired")
	})

	assert.Zero(t, env.count(t, &models.Post{}))
}

func TestIsAdminPath(t *testing.T) {
	cases := map[string]bool{
		"/new-post":            true,
		"/new-post/":           true,
		"/edit-post/3":         true,
		"/delete/3":            true,
		"/admin/feature-flags": true,
		"/new-postcard":        false,
		"/post/3":              false,
		"/login":               false,
		"/":                    false,
	}
	for path, want := range cases {
		assert.Equal(t, want, isAdminPath(path), path)
	}
}

func TestRegisterRateLimit(t *testing.T) {
	env := newTestEnv(t, newTestRedis(t), func(cfg *config.Config) {
		cfg.RegisterRateLimit = 2
	})
	b := env.browser(t)

	invalid := url.Values{"email": {"bad"}, "password": {"pw123"}, "name": {"Ann"}}
	for i := 0; i < 2; i++ {
		resp := b.post("/register", invalid)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	}
	resp := b.post("/register", invalid)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Viewing the form is never limited.
	status, _ := b.page("/register")
	assert.Equal(t, http.StatusOK, status)
}

func TestGlobalRateLimit(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *config.Config) {
		cfg.GlobalRateLimit = 2
	})
	b := env.browser(t)

	assert.Equal(t, http.StatusOK, b.get("/about").StatusCode)
	assert.Equal(t, http.StatusOK, b.get("/about").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, b.get("/about").StatusCode)

	// Probes bypass the limiter.
	assert.Equal(t, http.StatusOK, b.get("/health/live").StatusCode)
}

func TestHealthChecks(t *testing.T) {
	t.Run("without redis", func(t *testing.T) {
		env := newTestEnv(t, nil)
		b := env.browser(t)

		assert.Equal(t, http.StatusOK, b.get("/health/live").StatusCode)

		resp := b.get("/health/ready")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var payload struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &payload))
		assert.Equal(t, "healthy", payload.Status)
		assert.Equal(t, "healthy", payload.Checks["database"])
		assert.Equal(t, "disabled", payload.Checks["redis"])
	})

	t.Run("with redis", func(t *testing.T) {
		env := newTestEnv(t, newTestRedis(t))
		resp := env.browser(t).get("/health/ready")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), `"redis":"healthy"`)
	})

	t.Run("database down", func(t *testing.T) {
		env := newTestEnv(t, nil)
		sqlDB, err := env.db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		resp := env.browser(t).get("/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	b := env.browser(t)
	b.get("/")

	status, body := b.page("/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "http_requests_total")
}
