package user

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username or email already registered")
	ErrInvalidRole  = errors.New("invalid role")
)
