package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotlink/api/internal/domain"
)

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByTelegramID(ctx context.Context, telegramUserID string) (*domain.User, error)
	FindBySlug(ctx context.Context, slug string) (*domain.User, error)
	SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error)
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, p *domain.ProfileUpdate) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userCols = `id, telegram_user_id, display_name, slug, timezone,
slot_minutes, day_start, day_end, work_days, created_at, updated_at`

func (r *userRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var workDays []int32
	err := row.Scan(
		&u.ID, &u.TelegramUserID, &u.DisplayName, &u.Slug, &u.Timezone,
		&u.SlotMinutes, &u.DayStart, &u.DayEnd, &workDays,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.WorkDays = toWorkDays(workDays)
	return &u, nil
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return r.scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *userRepository) FindByTelegramID(ctx context.Context, telegramUserID string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE telegram_user_id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return r.scanUser(r.pool.QueryRow(ctx, q, telegramUserID))
}

func (r *userRepository) FindBySlug(ctx context.Context, slug string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE slug=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return r.scanUser(r.pool.QueryRow(ctx, q, slug))
}

func (r *userRepository) SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE slug=$1 AND id != $2)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var taken bool
	err := r.pool.QueryRow(ctx, q, slug, excludeID).Scan(&taken)
	return taken, err
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	const q = `INSERT INTO users (
		telegram_user_id, display_name, slug, timezone,
		slot_minutes, day_start, day_end, work_days
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	created, err := r.scanUser(r.pool.QueryRow(ctx, q,
		u.TelegramUserID, u.DisplayName, u.Slug, u.Timezone,
		u.SlotMinutes, u.DayStart, u.DayEnd, fromWorkDays(u.WorkDays),
	))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert user: %w", ErrUniqueViolation)
	}
	return created, err
}

func (r *userRepository) UpdateProfile(ctx context.Context, id int64, p *domain.ProfileUpdate) error {
	const q = `
		UPDATE users
		SET slug=$2, timezone=$3, slot_minutes=$4, day_start=$5, day_end=$6,
		    work_days=$7, updated_at=now()
		WHERE id=$1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id,
		p.Slug, p.Timezone, p.SlotMinutes, p.DayStart, p.DayEnd,
		fromWorkDays(p.WorkDays),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("update profile: %w", ErrUniqueViolation)
	}
	return err
}
