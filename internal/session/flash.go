package session

import (
	"encoding/base64"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
)

// Flash categories used by the templates.
const (
	FlashInfo    = "info"
	FlashError   = "error"
	FlashSuccess = "success"
)

// FlashCookieName holds messages queued for the next rendered page.
const FlashCookieName = "flash"

const pendingFlashesKey = "flash.pending"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// AddFlash queues a message for the next page the client renders.
func AddFlash(c *fiber.Ctx, category, message string) {
	pending := append(pendingFlashes(c), Flash{Category: category, Message: message})
	c.Locals(pendingFlashesKey, pending)

	raw, err := json.Marshal(pending)
	if err != nil {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     FlashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ConsumeFlashes returns every pending message and clears them.
func ConsumeFlashes(c *fiber.Ctx) []Flash {
	flashes := pendingFlashes(c)
	c.Locals(pendingFlashesKey, []Flash{})
	if len(flashes) > 0 || c.Cookies(FlashCookieName) != "" {
		expireCookie(c, FlashCookieName, false)
	}
	return flashes
}

// pendingFlashes returns messages queued in this request, or those carried in by the cookie.
func pendingFlashes(c *fiber.Ctx) []Flash {
	if pending, ok := c.Locals(pendingFlashesKey).([]Flash); ok {
		return pending
	}
	return decodeFlashes(c.Cookies(FlashCookieName))
}

func decodeFlashes(value string) []Flash {
	if value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(raw, &flashes); err != nil {
		return nil
	}
	return flashes
}
