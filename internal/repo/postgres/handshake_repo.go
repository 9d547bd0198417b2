package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotlink/api/internal/domain"
)

// HandshakeRepository persists the single-use secrets of both handshakes.
// Link/consume transitions are conditional updates: the WHERE clause on the
// current status is what makes each secret consumable exactly once under
// concurrent requests.
type HandshakeRepository interface {
	CreateLoginNonce(ctx context.Context, n *domain.LoginNonce) error
	GetLoginNonce(ctx context.Context, nonce string) (*domain.LoginNonce, error)
	LinkLoginNonce(ctx context.Context, nonce, telegramUserID string, userID int64) (bool, error)
	ConsumeLoginNonce(ctx context.Context, nonce string) (bool, error)

	CreateLoginToken(ctx context.Context, t *domain.LoginToken) error
	GetLoginToken(ctx context.Context, token string) (*domain.LoginToken, error)
	ActiveLoginToken(ctx context.Context, userID int64, now time.Time) (*domain.LoginToken, error)
	ConsumeLoginToken(ctx context.Context, token string) (bool, error)

	CreateBookingNonce(ctx context.Context, n *domain.BookingNonce) error
	GetBookingNonce(ctx context.Context, nonce string) (*domain.BookingNonce, error)
	ConsumeBookingNonce(ctx context.Context, nonce string) (bool, error)
}

type handshakeRepository struct {
	pool *pgxpool.Pool
}

func NewHandshakeRepository(pool *pgxpool.Pool) HandshakeRepository {
	return &handshakeRepository{pool: pool}
}

// Login nonces

func (r *handshakeRepository) CreateLoginNonce(ctx context.Context, n *domain.LoginNonce) error {
	const q = `
		INSERT INTO login_nonces (nonce, status, expires_at)
		VALUES ($1, $2, $3)`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, n.Nonce, n.Status, n.ExpiresAt)
	return err
}

func (r *handshakeRepository) GetLoginNonce(ctx context.Context, nonce string) (*domain.LoginNonce, error) {
	const q = `
		SELECT nonce, status, COALESCE(telegram_user_id, ''), user_id, expires_at, created_at
		FROM login_nonces
		WHERE nonce=$1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n domain.LoginNonce
	err := r.pool.QueryRow(ctx, q, nonce).Scan(
		&n.Nonce, &n.Status, &n.TelegramUserID, &n.UserID, &n.ExpiresAt, &n.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *handshakeRepository) LinkLoginNonce(ctx context.Context, nonce, telegramUserID string, userID int64) (bool, error) {
	const q = `
		UPDATE login_nonces
		SET status=$2, telegram_user_id=$3, user_id=$4
		WHERE nonce=$1 AND status=$5`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, nonce, domain.NonceLinked, telegramUserID, userID, domain.NonceCreated)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *handshakeRepository) ConsumeLoginNonce(ctx context.Context, nonce string) (bool, error) {
	const q = `
		UPDATE login_nonces
		SET status=$2
		WHERE nonce=$1 AND status=$3`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, nonce, domain.NonceConsumed, domain.NonceLinked)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Login tokens

func (r *handshakeRepository) CreateLoginToken(ctx context.Context, t *domain.LoginToken) error {
	const q = `
		INSERT INTO login_tokens (token, status, user_id, telegram_user_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, t.Token, t.Status, t.UserID, t.TelegramUserID, t.ExpiresAt)
	return err
}

func (r *handshakeRepository) GetLoginToken(ctx context.Context, token string) (*domain.LoginToken, error) {
	const q = `
		SELECT token, status, user_id, telegram_user_id, expires_at, created_at
		FROM login_tokens
		WHERE token=$1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t domain.LoginToken
	err := r.pool.QueryRow(ctx, q, token).Scan(
		&t.Token, &t.Status, &t.UserID, &t.TelegramUserID, &t.ExpiresAt, &t.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *handshakeRepository) ActiveLoginToken(ctx context.Context, userID int64, now time.Time) (*domain.LoginToken, error) {
	const q = `
		SELECT token, status, user_id, telegram_user_id, expires_at, created_at
		FROM login_tokens
		WHERE user_id=$1 AND status=$2 AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t domain.LoginToken
	err := r.pool.QueryRow(ctx, q, userID, domain.TokenActive, now).Scan(
		&t.Token, &t.Status, &t.UserID, &t.TelegramUserID, &t.ExpiresAt, &t.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *handshakeRepository) ConsumeLoginToken(ctx context.Context, token string) (bool, error) {
	const q = `
		UPDATE login_tokens
		SET status=$2
		WHERE token=$1 AND status=$3`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, token, domain.TokenConsumed, domain.TokenActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Booking nonces

func (r *handshakeRepository) CreateBookingNonce(ctx context.Context, n *domain.BookingNonce) error {
	const q = `
		INSERT INTO booking_nonces (
			nonce, status, owner_user_id, owner_telegram_user_id,
			start_at, end_at, client_name, client_comment, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, q,
		n.Nonce, n.Status, n.OwnerUserID, n.OwnerTelegramUserID,
		n.StartAt, n.EndAt, n.ClientName, n.ClientComment, n.ExpiresAt,
	)
	return err
}

func (r *handshakeRepository) GetBookingNonce(ctx context.Context, nonce string) (*domain.BookingNonce, error) {
	const q = `
		SELECT nonce, status, owner_user_id, owner_telegram_user_id,
		       start_at, end_at, client_name, COALESCE(client_comment, ''),
		       expires_at, created_at
		FROM booking_nonces
		WHERE nonce=$1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n domain.BookingNonce
	err := r.pool.QueryRow(ctx, q, nonce).Scan(
		&n.Nonce, &n.Status, &n.OwnerUserID, &n.OwnerTelegramUserID,
		&n.StartAt, &n.EndAt, &n.ClientName, &n.ClientComment,
		&n.ExpiresAt, &n.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *handshakeRepository) ConsumeBookingNonce(ctx context.Context, nonce string) (bool, error) {
	const q = `
		UPDATE booking_nonces
		SET status=$2
		WHERE nonce=$1 AND status=$3`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, nonce, domain.NonceConsumed, domain.NonceCreated)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
