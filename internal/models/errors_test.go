package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{NewNotFoundError("Post", 7), fiber.StatusNotFound},
		{NewValidationError("bad"), fiber.StatusUnprocessableEntity},
		{NewUnauthorizedError("who"), fiber.StatusUnauthorized},
		{NewForbiddenError("no"), fiber.StatusForbidden},
		{NewConflictError("dup"), fiber.StatusConflict},
		{NewInternalError(errors.New("boom")), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
		})
	}
}

func TestAppError_UnwrapAndIsCode(t *testing.T) {
	sentinel := errors.New("duplicate email")
	err := fmt.Errorf("register: %w", NewConflictError("Email already registered", sentinel))

	assert.True(t, IsCode(err, CodeConflict))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "Post with ID 3 not found", NewNotFoundError("Post", 3).Error())
	assert.Contains(t, NewInternalError(errors.New("db down")).Error(), "db down")
}
