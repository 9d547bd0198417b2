// Package postgres implements the record-store repositories over a pgx
// connection pool. Every call carries a bounded timeout; single-use secrets
// are consumed with conditional updates so the store stays the only
// serialization point.
package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const queryTimeout = 3 * time.Second

// ErrUniqueViolation marks an insert that hit a uniqueness constraint.
var ErrUniqueViolation = errors.New("unique violation")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func toWorkDays(raw []int32) []int {
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = int(v)
	}
	return out
}

func fromWorkDays(days []int) []int32 {
	out := make([]int32, len(days))
	for i, v := range days {
		out[i] = int32(v)
	}
	return out
}
