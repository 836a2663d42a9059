package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailAlreadyExists = errors.New("email or username already exists")
	ErrRoleNotAllowed     = errors.New("role cannot be self-assigned")
)
