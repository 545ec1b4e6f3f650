package service

import "errors"

// Sentinel causes wrapped in AppErrors so handlers can pick the right user message.
var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrUserNotFound   = errors.New("user not found")
	ErrWrongPassword  = errors.New("wrong password")
	ErrDuplicateTitle = errors.New("post title already used")
)
