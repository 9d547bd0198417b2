package service

import (
	"context"
	"errors"
	"fmt"

	goslug "github.com/gosimple/slug"

	"github.com/slotlink/api/internal/domain"
	"github.com/slotlink/api/internal/repo/postgres"
)

type UserService interface {
	// EnsureUser returns the account for a chat identity, creating it with
	// defaults on first contact.
	EnsureUser(ctx context.Context, chat domain.ChatUser) (*domain.User, error)
	Get(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, p *domain.ProfileUpdate) (*domain.User, error)
}

type userService struct {
	users postgres.UserRepository
}

func NewUserService(users postgres.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) EnsureUser(ctx context.Context, chat domain.ChatUser) (*domain.User, error) {
	existing, err := s.users.FindByTelegramID(ctx, chat.TelegramID())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	candidate := deriveSlug(chat)
	taken, err := s.users.SlugTaken(ctx, candidate, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		candidate = candidate + "-" + lastDigits(chat.TelegramID(), 3)
	}

	display := chat.FirstName
	if display == "" {
		display = chat.Username
	}
	if display == "" {
		display = "User"
	}

	created, err := s.users.Create(ctx, &domain.User{
		TelegramUserID: chat.TelegramID(),
		DisplayName:    display,
		Slug:           candidate,
		Timezone:       domain.DefaultTimezone,
		SlotMinutes:    domain.DefaultSlotMinutes,
		DayStart:       domain.DefaultDayStart,
		DayEnd:         domain.DefaultDayEnd,
		WorkDays:       domain.DefaultWorkDays(),
	})
	if errors.Is(err, postgres.ErrUniqueViolation) {
		// a concurrent first message from the same account won the insert
		return s.users.FindByTelegramID(ctx, chat.TelegramID())
	}
	return created, err
}

func (s *userService) Get(ctx context.Context, id int64) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id int64, p *domain.ProfileUpdate) (*domain.User, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	taken, err := s.users.SlugTaken(ctx, p.Slug, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("slug %q: %w", p.Slug, domain.ErrSlugTaken)
	}

	if err := s.users.UpdateProfile(ctx, id, p); err != nil {
		if errors.Is(err, postgres.ErrUniqueViolation) {
			return nil, fmt.Errorf("slug %q: %w", p.Slug, domain.ErrSlugTaken)
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// deriveSlug prefers a normalized chat username and falls back to a handle
// built from the numeric chat id.
func deriveSlug(chat domain.ChatUser) string {
	if chat.Username != "" {
		candidate := goslug.Make(chat.Username)
		if len(candidate) > 24 {
			candidate = candidate[:24]
		}
		if len(candidate) >= 3 && domain.ValidSlug(candidate) {
			return candidate
		}
	}
	return "u" + lastDigits(chat.TelegramID(), 6)
}

func lastDigits(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
