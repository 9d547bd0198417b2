// Package service holds the business rules of the two handshakes and the
// booking lifecycle. Services talk to the store through the repository
// interfaces and to chat through the Messenger, so both are mockable.
package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Messenger is the outbound chat surface. Send returns the message id of the
// delivered message so callers can edit it later.
type Messenger interface {
	Send(chatID int64, text string, actions [][]Action) (int, error)
	Edit(chatID int64, messageID int, text string) error
}

// Action is one inline button: the label shown and the callback data sent
// back when tapped.
type Action struct {
	Text string
	Data string
}

// MessageRef points at a chat message that asked for a decision, so the
// decision can be appended to it in place.
type MessageRef struct {
	ChatID    int64
	MessageID int
	Text      string
}

// Identity is the acting principal: a web caller carries a user id, a chat
// caller carries a chat identity. Either may be zero.
type Identity struct {
	UserID         int64
	TelegramUserID string
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func formatRange(start, end time.Time, loc *time.Location) string {
	s := start.In(loc)
	e := end.In(loc)
	return s.Format("Mon, 2 Jan 15:04") + " - " + e.Format("15:04")
}
