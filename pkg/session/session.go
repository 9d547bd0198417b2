// Package session mints and verifies the signed bearer credential issued
// after a completed login handshake.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Sub    int64  `json:"sub"`
	ChatID string `json:"tg"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret string
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: secret, ttl: ttl}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue binds a session to the user id and the chat identity that confirmed
// the login.
func (m *Manager) Issue(userID int64, chatID string) (string, error) {
	now := time.Now()
	claims := Claims{
		Sub:    userID,
		ChatID: chatID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Audience:  []string{"slotlink-api"},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secret))
}

func (m *Manager) Verify(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(m.secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := tok.Claims.(*Claims); ok && tok.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid session token")
}
