package server

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/forms"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/session"

	"github.com/gofiber/fiber/v2"
)

const layoutMain = "layouts/main"

// parseID extracts a route parameter as a positive id. Anything else is reported as a missing post.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, models.NewNotFoundError("Post", c.Params(param))
	}
	return uint(id), nil
}

// currentUser returns the identity loaded by LoadIdentity, or nil for anonymous requests.
func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localUser).(*models.User)
	return user
}

func currentUserID(c *fiber.Ctx) uint {
	if user := currentUser(c); user != nil {
		return user.ID
	}
	return 0
}

func (s *Server) flagEnabled(c *fiber.Ctx, name string) bool {
	return s.featureFlags.EnabledByDefault(name, currentUserID(c))
}

// render executes a page inside the main layout with the shared view data merged in.
func (s *Server) render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	user := currentUser(c)
	csrfToken, _ := c.Locals(localCSRF).(string)

	data["CurrentUser"] = user
	data["LoggedIn"] = user != nil
	data["IsAdmin"] = user != nil && user.IsAdmin
	data["Flashes"] = session.ConsumeFlashes(c)
	data["CSRF"] = csrfToken
	data["Year"] = time.Now().Year()
	data["RegistrationEnabled"] = s.flagEnabled(c, flagRegistration)
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = forms.Errors{}
	}

	return c.Status(status).Render(name, data, layoutMain)
}

// ErrorHandler renders the error page for any error a handler or middleware returns.
func (s *Server) ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Something went wrong on our side."

	var appErr *models.AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		status = appErr.HTTPStatus()
		message = appErr.Message
	case errors.As(err, &fiberErr):
		status = fiberErr.Code
		message = fiberErr.Message
	}

	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
		message = "Something went wrong on our side."
	}

	if status == fiber.StatusNotFound {
		message = "The page you were looking for does not exist."
	}

	if rerr := s.render(c, status, "error", fiber.Map{
		"Title":   fmt.Sprintf("%d", status),
		"Status":  status,
		"Message": message,
	}); rerr != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "error page render failed", slog.String("error", rerr.Error()))
		return c.Status(status).SendString(message)
	}
	return nil
}
