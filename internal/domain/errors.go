package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrTooManyRequests  = errors.New("too many requests")
	ErrRequestExhausted = errors.New("request retries exhausted")
	ErrSessionRefresh   = errors.New("session refresh failed")
	ErrLoginFailed      = errors.New("interactive login failed")
	ErrNoLimit          = errors.New("no rate limit registered for service")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrContextDone      = errors.New("context cancelled")
)
