package auth

import "errors"

var (
	// ErrInvalidCredentials covers unknown identifiers and wrong passwords alike.
	ErrInvalidCredentials   = errors.New("invalid identifier or password")
	ErrInvalidRefreshToken  = errors.New("refresh token is invalid, expired or already used")
	ErrRefreshTokenRequired = errors.New("refresh token is required")
	ErrUserBanned           = errors.New("account is banned")
)
