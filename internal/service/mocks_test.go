package service

import (
	"context"
	"fmt"
	"time"

	"github.com/slotlink/api/internal/domain"
	"github.com/slotlink/api/internal/repo/postgres"
	"github.com/slotlink/api/pkg/config"
)

// clock is a mutable test clock injected into services.
type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:     "test-secret",
			NonceTTL:      10 * time.Minute,
			LoginTokenTTL: 10 * time.Minute,
			SessionTTL:    time.Hour,
		},
		Telegram: config.TelegramConfig{BotUsername: "slotlink_bot"},
		App:      config.AppConfig{BaseURL: "https://slotlink.test", ScheduleDays: 7},
	}
}

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	nextID int64
	byID   map[int64]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[int64]*domain.User{}}
}

func (f *fakeUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByTelegramID(_ context.Context, tgID string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.TelegramUserID == tgID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) FindBySlug(_ context.Context, slug string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.Slug == slug {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) SlugTaken(_ context.Context, slug string, excludeID int64) (bool, error) {
	for _, u := range f.byID {
		if u.Slug == slug && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	for _, existing := range f.byID {
		if existing.TelegramUserID == u.TelegramUserID || existing.Slug == u.Slug {
			return nil, postgres.ErrUniqueViolation
		}
	}
	f.nextID++
	cp := *u
	cp.ID = f.nextID
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, id int64, p *domain.ProfileUpdate) error {
	u, ok := f.byID[id]
	if !ok {
		return nil
	}
	u.Slug = p.Slug
	u.Timezone = p.Timezone
	u.SlotMinutes = p.SlotMinutes
	u.DayStart = p.DayStart
	u.DayEnd = p.DayEnd
	u.WorkDays = p.WorkDays
	return nil
}

// fakeHandshakes keeps the same conditional-transition semantics as the
// store-backed repository.
type fakeHandshakes struct {
	loginNonces   map[string]*domain.LoginNonce
	loginTokens   map[string]*domain.LoginToken
	bookingNonces map[string]*domain.BookingNonce
}

func newFakeHandshakes() *fakeHandshakes {
	return &fakeHandshakes{
		loginNonces:   map[string]*domain.LoginNonce{},
		loginTokens:   map[string]*domain.LoginToken{},
		bookingNonces: map[string]*domain.BookingNonce{},
	}
}

func (f *fakeHandshakes) CreateLoginNonce(_ context.Context, n *domain.LoginNonce) error {
	cp := *n
	f.loginNonces[n.Nonce] = &cp
	return nil
}

func (f *fakeHandshakes) GetLoginNonce(_ context.Context, nonce string) (*domain.LoginNonce, error) {
	if n, ok := f.loginNonces[nonce]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeHandshakes) LinkLoginNonce(_ context.Context, nonce, tgID string, userID int64) (bool, error) {
	n, ok := f.loginNonces[nonce]
	if !ok || n.Status != domain.NonceCreated {
		return false, nil
	}
	n.Status = domain.NonceLinked
	n.TelegramUserID = tgID
	n.UserID = &userID
	return true, nil
}

func (f *fakeHandshakes) ConsumeLoginNonce(_ context.Context, nonce string) (bool, error) {
	n, ok := f.loginNonces[nonce]
	if !ok || n.Status != domain.NonceLinked {
		return false, nil
	}
	n.Status = domain.NonceConsumed
	return true, nil
}

func (f *fakeHandshakes) CreateLoginToken(_ context.Context, t *domain.LoginToken) error {
	cp := *t
	f.loginTokens[t.Token] = &cp
	return nil
}

func (f *fakeHandshakes) GetLoginToken(_ context.Context, token string) (*domain.LoginToken, error) {
	if t, ok := f.loginTokens[token]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeHandshakes) ActiveLoginToken(_ context.Context, userID int64, now time.Time) (*domain.LoginToken, error) {
	for _, t := range f.loginTokens {
		if t.UserID == userID && t.Status == domain.TokenActive && t.ExpiresAt.After(now) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeHandshakes) ConsumeLoginToken(_ context.Context, token string) (bool, error) {
	t, ok := f.loginTokens[token]
	if !ok || t.Status != domain.TokenActive {
		return false, nil
	}
	t.Status = domain.TokenConsumed
	return true, nil
}

func (f *fakeHandshakes) CreateBookingNonce(_ context.Context, n *domain.BookingNonce) error {
	cp := *n
	f.bookingNonces[n.Nonce] = &cp
	return nil
}

func (f *fakeHandshakes) GetBookingNonce(_ context.Context, nonce string) (*domain.BookingNonce, error) {
	if n, ok := f.bookingNonces[nonce]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeHandshakes) ConsumeBookingNonce(_ context.Context, nonce string) (bool, error) {
	n, ok := f.bookingNonces[nonce]
	if !ok || n.Status != domain.NonceCreated {
		return false, nil
	}
	n.Status = domain.NonceConsumed
	return true, nil
}

// fakeBookings enforces the slot uniqueness constraint like the store does.
type fakeBookings struct {
	nextID int64
	byID   map[int64]*domain.Booking
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{byID: map[int64]*domain.Booking{}}
}

func slotKey(ownerID int64, start, end time.Time) string {
	return fmt.Sprintf("%d|%d|%d", ownerID, start.Unix(), end.Unix())
}

func (f *fakeBookings) Create(_ context.Context, b *domain.Booking) (*domain.Booking, error) {
	key := slotKey(b.OwnerUserID, b.StartAt, b.EndAt)
	for _, existing := range f.byID {
		if slotKey(existing.OwnerUserID, existing.StartAt, existing.EndAt) == key {
			return nil, domain.ErrSlotTaken
		}
	}
	f.nextID++
	cp := *b
	cp.ID = f.nextID
	cp.Status = domain.BookingPending
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeBookings) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	if b, ok := f.byID[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeBookings) Decide(_ context.Context, id int64, status domain.BookingStatus, approvedAt *time.Time) (*domain.Booking, error) {
	b, ok := f.byID[id]
	if !ok || b.Status != domain.BookingPending {
		return nil, nil
	}
	b.Status = status
	b.ApprovedAt = approvedAt
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) ListPending(_ context.Context, ownerUserID int64) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range f.byID {
		if b.OwnerUserID == ownerUserID && b.Status == domain.BookingPending {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookings) ListBusy(_ context.Context, ownerUserID int64, from, to time.Time) ([]domain.BusySlot, error) {
	var out []domain.BusySlot
	for _, b := range f.byID {
		if b.OwnerUserID != ownerUserID {
			continue
		}
		if b.Status != domain.BookingPending && b.Status != domain.BookingApproved {
			continue
		}
		if b.StartAt.Before(from) || b.StartAt.After(to) {
			continue
		}
		out = append(out, domain.BusySlot{StartAt: b.StartAt, EndAt: b.EndAt, Status: b.Status})
	}
	return out, nil
}

// fakeMessenger records everything sent or edited.
type sentMessage struct {
	chatID  int64
	text    string
	actions [][]Action
}

type fakeMessenger struct {
	nextID int
	sent   []sentMessage
	edits  []string
}

func (m *fakeMessenger) Send(chatID int64, text string, actions [][]Action) (int, error) {
	m.nextID++
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text, actions: actions})
	return m.nextID, nil
}

func (m *fakeMessenger) Edit(_ int64, _ int, text string) error {
	m.edits = append(m.edits, text)
	return nil
}

func (m *fakeMessenger) last() sentMessage {
	return m.sent[len(m.sent)-1]
}

// fakeBus records published subjects.
type fakeBus struct {
	subjects []string
}

func (b *fakeBus) Publish(_ context.Context, subject string, _ interface{}) error {
	b.subjects = append(b.subjects, subject)
	return nil
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) has(subject string) bool {
	for _, s := range b.subjects {
		if s == subject {
			return true
		}
	}
	return false
}
