package domain

import (
	"fmt"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingApproved BookingStatus = "approved"
	BookingRejected BookingStatus = "rejected"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingPending, BookingApproved, BookingRejected:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

type DecisionAction string

const (
	DecisionApprove DecisionAction = "approve"
	DecisionReject  DecisionAction = "reject"
)

func ParseDecisionAction(s string) (DecisionAction, bool) {
	switch DecisionAction(strings.ToLower(s)) {
	case DecisionApprove:
		return DecisionApprove, true
	case DecisionReject:
		return DecisionReject, true
	default:
		return "", false
	}
}

// Status returns the terminal status the action leads to.
func (a DecisionAction) Status() BookingStatus {
	if a == DecisionApprove {
		return BookingApproved
	}
	return BookingRejected
}

type Booking struct {
	ID                   int64         `json:"id"`
	OwnerUserID          int64         `json:"owner_user_id"`
	OwnerTelegramUserID  string        `json:"owner_telegram_user_id"`
	ClientUserID         int64         `json:"client_user_id"`
	ClientTelegramUserID string        `json:"client_telegram_user_id"`
	StartAt              time.Time     `json:"start_at"`
	EndAt                time.Time     `json:"end_at"`
	ClientName           string        `json:"client_name"`
	ClientComment        string        `json:"client_comment"`
	Status               BookingStatus `json:"status"`
	ApprovedAt           *time.Time    `json:"approved_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// IsOwner reports whether the acting identity owns this booking. A web
// caller is matched on user id, a chat caller on chat identity.
func (b *Booking) IsOwner(userID int64, telegramUserID string) bool {
	if userID != 0 {
		return b.OwnerUserID == userID
	}
	return telegramUserID != "" && b.OwnerTelegramUserID == telegramUserID
}

// BusySlot is one already-occupied interval on an owner's schedule.
type BusySlot struct {
	StartAt time.Time     `json:"start_at"`
	EndAt   time.Time     `json:"end_at"`
	Status  BookingStatus `json:"status"`
}

// BookingRequest is the payload a client submits when selecting a slot.
type BookingRequest struct {
	OwnerSlug     string    `json:"owner_slug"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	ClientName    string    `json:"client_name"`
	ClientComment string    `json:"client_comment"`
}

func (r *BookingRequest) Normalize() {
	r.OwnerSlug = strings.TrimSpace(r.OwnerSlug)
	r.ClientName = strings.TrimSpace(r.ClientName)
	r.ClientComment = strings.TrimSpace(r.ClientComment)
}

func (r *BookingRequest) Validate() error {
	if r.OwnerSlug == "" {
		return fmt.Errorf("%w: owner_slug is required", ErrValidation)
	}
	if r.ClientName == "" {
		return fmt.Errorf("%w: client_name is required", ErrValidation)
	}
	if r.StartAt.IsZero() || r.EndAt.IsZero() {
		return fmt.Errorf("%w: start_at and end_at are required", ErrValidation)
	}
	if !r.StartAt.Before(r.EndAt) {
		return fmt.Errorf("%w: start_at must be before end_at", ErrValidation)
	}
	return nil
}
