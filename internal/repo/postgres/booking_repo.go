package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotlink/api/internal/domain"
)

type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	Decide(ctx context.Context, id int64, status domain.BookingStatus, approvedAt *time.Time) (*domain.Booking, error)
	ListPending(ctx context.Context, ownerUserID int64) ([]domain.Booking, error)
	ListBusy(ctx context.Context, ownerUserID int64, from, to time.Time) ([]domain.BusySlot, error)
}

type bookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{pool: pool}
}

const bookingCols = `id, owner_user_id, owner_telegram_user_id,
client_user_id, client_telegram_user_id,
start_at, end_at, client_name, COALESCE(client_comment, ''),
status, approved_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.OwnerUserID, &b.OwnerTelegramUserID,
		&b.ClientUserID, &b.ClientTelegramUserID,
		&b.StartAt, &b.EndAt, &b.ClientName, &b.ClientComment,
		&b.Status, &b.ApprovedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a pending booking. The slot race between two clients is
// settled here by the UNIQUE (owner_user_id, start_at, end_at) constraint;
// a violation surfaces as ErrSlotTaken and is permanent for that slot.
func (r *bookingRepository) Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	const q = `INSERT INTO bookings (
		owner_user_id, owner_telegram_user_id,
		client_user_id, client_telegram_user_id,
		start_at, end_at, client_name, client_comment, status
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'pending')
	RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	created, err := scanBooking(r.pool.QueryRow(ctx, q,
		b.OwnerUserID, b.OwnerTelegramUserID,
		b.ClientUserID, b.ClientTelegramUserID,
		b.StartAt, b.EndAt, b.ClientName, b.ClientComment,
	))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert booking: %w", domain.ErrSlotTaken)
	}
	return created, err
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanBooking(r.pool.QueryRow(ctx, q, id))
}

// Decide flips a pending booking into its terminal status. The status guard
// in the WHERE clause makes the transition happen at most once; callers get
// (nil, nil) when another request already decided.
func (r *bookingRepository) Decide(ctx context.Context, id int64, status domain.BookingStatus, approvedAt *time.Time) (*domain.Booking, error) {
	const q = `
		UPDATE bookings
		SET status=$2, approved_at=$3, updated_at=now()
		WHERE id=$1 AND status=$4
		RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanBooking(r.pool.QueryRow(ctx, q, id, status, approvedAt, domain.BookingPending))
}

func (r *bookingRepository) ListPending(ctx context.Context, ownerUserID int64) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + `
		FROM bookings
		WHERE owner_user_id=$1 AND status='pending'
		ORDER BY start_at ASC`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.OwnerUserID, &b.OwnerTelegramUserID,
			&b.ClientUserID, &b.ClientTelegramUserID,
			&b.StartAt, &b.EndAt, &b.ClientName, &b.ClientComment,
			&b.Status, &b.ApprovedAt, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListBusy returns the occupied intervals (pending or approved) starting
// inside [from, to], the set the slot engine subtracts from candidates.
func (r *bookingRepository) ListBusy(ctx context.Context, ownerUserID int64, from, to time.Time) ([]domain.BusySlot, error) {
	const q = `
		SELECT start_at, end_at, status
		FROM bookings
		WHERE owner_user_id=$1
		  AND status IN ('pending', 'approved')
		  AND start_at >= $2 AND start_at <= $3
		ORDER BY start_at ASC`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, ownerUserID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var busy []domain.BusySlot
	for rows.Next() {
		var s domain.BusySlot
		if err := rows.Scan(&s.StartAt, &s.EndAt, &s.Status); err != nil {
			return nil, err
		}
		busy = append(busy, s)
	}
	return busy, rows.Err()
}
