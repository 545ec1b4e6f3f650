// Package session issues, resolves and revokes the signed session cookie and carries
// one-shot flash messages between requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"inkwell/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "session"

	issuer   = "inkwell"
	audience = "inkwell-web"

	revokedKeyPrefix = "session:revoked:"
)

// ErrInvalidSession is returned when a session token fails verification.
var ErrInvalidSession = errors.New("invalid session")

// Claims are the JWT claims carried by the session cookie.
type Claims struct {
	jwt.RegisteredClaims
}

// Options configure a Manager.
type Options struct {
	Secret string
	TTL    time.Duration
	Secure bool
	Redis  *redis.Client
}

// Manager owns the session cookie. Revocations are recorded in Redis when a client is set.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	rdb    *redis.Client
	now    func() time.Time
}

// NewManager builds a Manager from opts.
func NewManager(opts Options) *Manager {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{
		secret: []byte(opts.Secret),
		ttl:    ttl,
		secure: opts.Secure,
		rdb:    opts.Redis,
		now:    time.Now,
	}
}

// Issue signs a new session for userID and sets it on the response.
func (m *Manager) Issue(c *fiber.Ctx, userID uint) error {
	token, expires, err := m.sign(userID)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (m *Manager) sign(userID uint) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("session secret not configured")
	}

	now := m.now()
	expires := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

func (m *Manager) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	if claims.ID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Resolve returns the user id of a valid, unrevoked session cookie.
func (m *Manager) Resolve(c *fiber.Ctx) (uint, *Claims, bool) {
	raw := c.Cookies(CookieName)
	if raw == "" {
		return 0, nil, false
	}

	claims, err := m.parse(raw)
	if err != nil {
		return 0, nil, false
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return 0, nil, false
	}

	if m.isRevoked(c.UserContext(), claims.ID) {
		return 0, nil, false
	}

	return uint(userID), claims, true
}

func (m *Manager) isRevoked(ctx context.Context, jti string) bool {
	if m.rdb == nil {
		return false
	}
	n, err := m.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		// fail open
		middleware.Logger.WarnContext(ctx, "session revocation check failed", slog.String("error", err.Error()))
		return false
	}
	return n > 0
}

// Revoke ends the current session. It is safe to call without any session.
func (m *Manager) Revoke(c *fiber.Ctx) error {
	defer m.Clear(c)

	raw := c.Cookies(CookieName)
	if raw == "" || m.rdb == nil {
		return nil
	}
	claims, err := m.parse(raw)
	if err != nil {
		return nil
	}

	remaining := claims.ExpiresAt.Sub(m.now())
	if remaining <= 0 {
		return nil
	}
	if err := m.rdb.Set(c.UserContext(), revokedKeyPrefix+claims.ID, "1", remaining).Err(); err != nil {
		return fmt.Errorf("record session revocation: %w", err)
	}
	return nil
}

// Clear expires the session cookie on the client.
func (m *Manager) Clear(c *fiber.Ctx) {
	expireCookie(c, CookieName, m.secure)
}

// expireCookie deletes name on the client. Only Expires survives encryptcookie re-serializing the cookie.
func expireCookie(c *fiber.Ctx, name string, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  fasthttp.CookieExpireDelete,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
