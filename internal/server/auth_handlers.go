package server

import (
	"errors"
	"log/slog"

	"inkwell/internal/forms"
	"inkwell/internal/middleware"
	"inkwell/internal/service"
	"inkwell/internal/session"

	"github.com/gofiber/fiber/v2"
)

const (
	msgAlreadyRegistered  = "You've already signed up with that email, log in instead!"
	msgUnknownEmail       = "That email does not exist, please try again."
	msgWrongPassword      = "Password incorrect, please try again."
	msgRegistrationClosed = "Registration is currently closed."
	msgInvalidSubmission  = "The form could not be read, please try again."
)

// RegisterPage handles GET /register
func (s *Server) RegisterPage(c *fiber.Ctx) error {
	if !s.flagEnabled(c, flagRegistration) {
		session.AddFlash(c, session.FlashInfo, msgRegistrationClosed)
		return c.Redirect("/login")
	}
	return s.renderRegister(c, fiber.StatusOK, &forms.RegisterForm{}, nil)
}

// Register handles POST /register
func (s *Server) Register(c *fiber.Ctx) error {
	if !s.flagEnabled(c, flagRegistration) {
		session.AddFlash(c, session.FlashInfo, msgRegistrationClosed)
		return c.Redirect("/login")
	}

	var form forms.RegisterForm
	if err := c.BodyParser(&form); err != nil {
		return s.renderRegister(c, fiber.StatusUnprocessableEntity, &form, unreadableForm())
	}
	if errs := form.Validate(s.passwordPolicy); errs.Any() {
		return s.renderRegister(c, fiber.StatusUnprocessableEntity, &form, errs)
	}

	user, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		Email:    form.Email,
		Name:     form.Name,
		Password: form.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrDuplicateEmail) {
			session.AddFlash(c, session.FlashError, msgAlreadyRegistered)
			return c.Redirect("/login")
		}
		return err
	}

	if err := s.sessions.Issue(c, user.ID); err != nil {
		return err
	}
	return c.Redirect("/")
}

func (s *Server) renderRegister(c *fiber.Ctx, status int, form *forms.RegisterForm, errs forms.Errors) error {
	// Never echo the password back into the page.
	form.Password = ""
	return s.render(c, status, "register", fiber.Map{
		"Title":  "Register",
		"Form":   form,
		"Errors": errs,
	})
}

// LoginPage handles GET /login
func (s *Server) LoginPage(c *fiber.Ctx) error {
	return s.renderLogin(c, fiber.StatusOK, &forms.LoginForm{}, nil)
}

// Login handles POST /login
func (s *Server) Login(c *fiber.Ctx) error {
	var form forms.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return s.renderLogin(c, fiber.StatusUnprocessableEntity, &form, unreadableForm())
	}
	if errs := form.Validate(); errs.Any() {
		return s.renderLogin(c, fiber.StatusUnprocessableEntity, &form, errs)
	}

	user, err := s.authService.Login(c.UserContext(), service.LoginInput{
		Email:    form.Email,
		Password: form.Password,
	})
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		session.AddFlash(c, session.FlashError, msgUnknownEmail)
		return c.Redirect("/login")
	case errors.Is(err, service.ErrWrongPassword):
		session.AddFlash(c, session.FlashError, msgWrongPassword)
		return c.Redirect("/login")
	case err != nil:
		return err
	}

	if err := s.sessions.Issue(c, user.ID); err != nil {
		return err
	}
	return c.Redirect("/")
}

func (s *Server) renderLogin(c *fiber.Ctx, status int, form *forms.LoginForm, errs forms.Errors) error {
	form.Password = ""
	return s.render(c, status, "login", fiber.Map{
		"Title":  "Log In",
		"Form":   form,
		"Errors": errs,
	})
}

// Logout handles GET /logout
func (s *Server) Logout(c *fiber.Ctx) error {
	if currentUser(c) != nil {
		s.authService.RecordLogout()
	}
	if err := s.sessions.Revoke(c); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "session revocation failed", slog.String("error", err.Error()))
	}
	return c.Redirect("/")
}
