package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrForbidden       = errors.New("launch data rejected")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrMisconfigured   = errors.New("auth service misconfigured")
	ErrSessionNotFound = errors.New("session not found")
	ErrRefreshNotFound = errors.New("refresh token not found")
)

type SessionRecord struct {
	SID       string
	UserID    int64
	Username  string
	ExpiresAt time.Time
}

type AccessClaims struct {
	UserID    int64
	SID       string
	Username  string
	ExpiresAt time.Time
}

type Me struct {
	ID       int64
	Username string
}

type AuthResult struct {
	AccessToken   string
	RefreshToken  string
	AccessExpires time.Time
	Me            Me
}
