package service

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidToken        = errors.New("access token is invalid, expired or exhausted")
	ErrAccessTokenRequired = errors.New("access token is required")
	ErrTokenNotFound       = errors.New("access token not found")
	ErrTokenCodeExhaust    = errors.New("could not generate a unique token code")
	ErrSessionNotFound     = errors.New("quiz session not found")
	ErrSessionClosed       = errors.New("quiz session is no longer active")
	ErrInvalidStatus       = errors.New("invalid completion status")
	ErrResultNotFound      = errors.New("result summary not found")
)
