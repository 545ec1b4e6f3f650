// Package forms parses, normalizes and validates the HTML forms posted to the blog.
package forms

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"inkwell/internal/validation"

	"github.com/go-playground/validator/v10"
)

// Errors maps a form field name to a user-facing message.
type Errors map[string]string

// Add records msg for field unless the field already has a message.
func (e Errors) Add(field, msg string) {
	if _, exists := e[field]; !exists {
		e[field] = msg
	}
}

// Any reports whether at least one field failed.
func (e Errors) Any() bool {
	return len(e) > 0
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("web_url", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		if err != nil {
			return false
		}
		return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	})
	return v
}

func check(form any) Errors {
	errs := Errors{}
	err := validate.Struct(form)
	if err == nil {
		return errs
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add("form", "The form could not be read.")
		return errs
	}
	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "web_url":
		return "Enter a valid http or https URL."
	default:
		return "This value is not valid."
	}
}

// RegisterForm is the account sign-up form.
type RegisterForm struct {
	Email    string `form:"email" validate:"required,email,max=250"`
	Password string `form:"password" validate:"required,max=250"`
	Name     string `form:"name" validate:"required,max=250"`
}

// Normalize trims fields and lower-cases the email. The password is left as typed.
func (f *RegisterForm) Normalize() {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Name = strings.TrimSpace(f.Name)
}

// Validate normalizes the form and checks it, including the password policy.
func (f *RegisterForm) Validate(policy validation.PasswordPolicy) Errors {
	f.Normalize()
	errs := check(f)
	if _, failed := errs["password"]; !failed {
		if err := policy.Check(f.Password); err != nil {
			errs.Add("password", capitalize(err.Error())+".")
		}
	}
	return errs
}

// LoginForm is the sign-in form.
type LoginForm struct {
	Email    string `form:"email" validate:"required,email,max=250"`
	Password string `form:"password" validate:"required,max=250"`
}

// Validate normalizes the form and checks that both fields are present.
func (f *LoginForm) Validate() Errors {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	return check(f)
}

// PostForm creates or edits a blog post. The author is never taken from the form.
type PostForm struct {
	Title    string `form:"title" validate:"required,max=250"`
	Subtitle string `form:"subtitle" validate:"required,max=250"`
	ImgURL   string `form:"img_url" validate:"required,max=250,web_url"`
	Body     string `form:"body" validate:"required"`
}

// Validate normalizes the form and checks it.
func (f *PostForm) Validate() Errors {
	f.Title = strings.TrimSpace(f.Title)
	f.Subtitle = strings.TrimSpace(f.Subtitle)
	f.ImgURL = strings.TrimSpace(f.ImgURL)
	f.Body = strings.TrimSpace(f.Body)
	return check(f)
}

// MaxCommentLength bounds a single comment.
const MaxCommentLength = 10000

// CommentForm is the comment box under a post.
type CommentForm struct {
	Text string `form:"comment_text" validate:"required,max=10000"`
}

// Validate normalizes the form and checks it. Whitespace-only text counts as empty.
func (f *CommentForm) Validate() Errors {
	f.Text = strings.TrimSpace(f.Text)
	return check(f)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
