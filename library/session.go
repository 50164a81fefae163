package library

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionLifetime bounds how long a signed session token stays valid.
const DefaultSessionLifetime = 24 * time.Hour

const sessionIssuer = "library-desk"

// Session is the authenticated identity passed explicitly to callers after a
// successful login or registration.
type Session struct {
	ID       uuid.UUID
	User     *User
	IssuedAt time.Time
}

func newSession(u *User, now time.Time) *Session {
	return &Session{ID: uuid.New(), User: u, IssuedAt: now.UTC()}
}

// IsAdmin reports whether the session belongs to an administrator.
func (s *Session) IsAdmin() bool { return s != nil && s.User != nil && s.User.IsAdmin() }

// RequireAdmin returns ErrForbidden unless the session is an administrator's.
func (s *Session) RequireAdmin() error {
	if !s.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// SessionClaims are the JWT claims carried by a session token.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionSigner encodes sessions as HS256 tokens and decodes them back.
type SessionSigner struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewSessionSigner returns a signer using secret. A non-positive lifetime
// falls back to DefaultSessionLifetime.
func NewSessionSigner(secret []byte, lifetime time.Duration) (*SessionSigner, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret must not be empty")
	}
	if lifetime <= 0 {
		lifetime = DefaultSessionLifetime
	}
	return &SessionSigner{secret: secret, lifetime: lifetime, now: time.Now}, nil
}

// Sign returns a signed token for the session.
func (s *SessionSigner) Sign(sess *Session) (string, error) {
	if sess == nil || sess.User == nil {
		return "", ErrInvalidSession
	}
	issued := sess.IssuedAt
	if issued.IsZero() {
		issued = s.now()
	}
	claims := SessionClaims{
		SessionID: sess.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   strconv.FormatInt(sess.User.ID, 10),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates a token and returns its claims. Any failure, including
// expiry or a bad signature, is reported as ErrInvalidSession.
func (s *SessionSigner) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.secret, nil
		},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// UserID extracts the user id from the subject claim.
func (c *SessionClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidSession
	}
	return id, nil
}
