package domain

import (
	"fmt"
	"regexp"
	"time"
)

// Defaults applied when a user record is created on first login.
const (
	DefaultTimezone    = "Europe/Amsterdam"
	DefaultSlotMinutes = 30
	DefaultDayStart    = 10
	DefaultDayEnd      = 18
)

// DefaultWorkDays is Monday through Friday (Mon=0 .. Sun=6).
func DefaultWorkDays() []int {
	return []int{0, 1, 2, 3, 4}
}

type User struct {
	ID             int64     `json:"id"`
	TelegramUserID string    `json:"telegram_user_id"`
	DisplayName    string    `json:"display_name"`
	Slug           string    `json:"slug"`
	Timezone       string    `json:"timezone"`
	SlotMinutes    int       `json:"slot_minutes"`
	DayStart       int       `json:"day_start"`
	DayEnd         int       `json:"day_end"`
	WorkDays       []int     `json:"work_days"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Location resolves the user's timezone, falling back to UTC on a bad name.
func (u *User) Location() *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PublicProfile is the subset of User exposed on the public schedule page.
type PublicProfile struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
	SlotMinutes int    `json:"slot_minutes"`
	DayStart    int    `json:"day_start"`
	DayEnd      int    `json:"day_end"`
	WorkDays    []int  `json:"work_days"`
}

func (u *User) ToPublicProfile() *PublicProfile {
	return &PublicProfile{
		ID:          u.ID,
		Slug:        u.Slug,
		DisplayName: u.DisplayName,
		Timezone:    u.Timezone,
		SlotMinutes: u.SlotMinutes,
		DayStart:    u.DayStart,
		DayEnd:      u.DayEnd,
		WorkDays:    u.WorkDays,
	}
}

// ChatUser is the identity delivered by the chat transport.
type ChatUser struct {
	ID        int64
	Username  string
	FirstName string
}

func (c ChatUser) TelegramID() string {
	return fmt.Sprintf("%d", c.ID)
}

var slugPattern = regexp.MustCompile(`(?i)^[a-z0-9][a-z0-9-_]{2,30}$`)

func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

type ProfileUpdate struct {
	Slug        string `json:"slug"`
	Timezone    string `json:"timezone"`
	SlotMinutes int    `json:"slot_minutes"`
	DayStart    int    `json:"day_start"`
	DayEnd      int    `json:"day_end"`
	WorkDays    []int  `json:"work_days"`
}

func (p *ProfileUpdate) Normalize() {
	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
	if p.SlotMinutes <= 0 {
		p.SlotMinutes = DefaultSlotMinutes
	}
	if p.DayStart <= 0 {
		p.DayStart = DefaultDayStart
	}
	if p.DayEnd <= 0 {
		p.DayEnd = DefaultDayEnd
	}
	if len(p.WorkDays) == 0 {
		p.WorkDays = DefaultWorkDays()
	}
}

func (p *ProfileUpdate) Validate() error {
	if !ValidSlug(p.Slug) {
		return fmt.Errorf("%w: bad slug", ErrValidation)
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone", ErrValidation)
	}
	if p.DayStart < 0 || p.DayEnd > 24 || p.DayStart >= p.DayEnd {
		return fmt.Errorf("%w: day bounds out of range", ErrValidation)
	}
	for _, wd := range p.WorkDays {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("%w: work day out of range", ErrValidation)
		}
	}
	return nil
}
