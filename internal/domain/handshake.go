package domain

import "time"

// NonceStatus tracks a handshake secret through its lifecycle. A nonce is
// consumable exactly once; expiry is checked lazily at the moment of use.
type NonceStatus string

const (
	NonceCreated  NonceStatus = "created"
	NonceLinked   NonceStatus = "linked"
	NonceConsumed NonceStatus = "consumed"
)

type TokenStatus string

const (
	TokenActive   TokenStatus = "active"
	TokenConsumed TokenStatus = "consumed"
)

// Expiring is embedded by every single-use secret so both handshakes share
// one expiry check.
type Expiring struct {
	ExpiresAt time.Time `json:"expires_at"`
}

func (e Expiring) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// LoginNonce is created by the web side and mutated only by the chat side:
// created -> linked (chat opens the deep link) -> consumed (chat confirms).
type LoginNonce struct {
	Nonce          string      `json:"nonce"`
	Status         NonceStatus `json:"status"`
	TelegramUserID string      `json:"telegram_user_id"`
	UserID         *int64      `json:"user_id"`
	Expiring
	CreatedAt time.Time `json:"created_at"`
}

// LoginToken is minted once per confirmed handshake and redeemed exactly
// once by the web side for a session credential.
type LoginToken struct {
	Token          string      `json:"token"`
	Status         TokenStatus `json:"status"`
	UserID         int64       `json:"user_id"`
	TelegramUserID string      `json:"telegram_user_id"`
	Expiring
	CreatedAt time.Time `json:"created_at"`
}

// BookingNonce carries the full candidate booking payload. Consuming it on
// chat confirmation is the only moment a Booking is actually created.
type BookingNonce struct {
	Nonce               string      `json:"nonce"`
	Status              NonceStatus `json:"status"`
	OwnerUserID         int64       `json:"owner_user_id"`
	OwnerTelegramUserID string      `json:"owner_telegram_user_id"`
	StartAt             time.Time   `json:"start_at"`
	EndAt               time.Time   `json:"end_at"`
	ClientName          string      `json:"client_name"`
	ClientComment       string      `json:"client_comment"`
	Expiring
	CreatedAt time.Time `json:"created_at"`
}
