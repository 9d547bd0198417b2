package service

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/slotlink/api/internal/domain"
	"github.com/slotlink/api/internal/repo/postgres"
	"github.com/slotlink/api/internal/slots"
	"github.com/slotlink/api/pkg/config"
	"github.com/slotlink/api/pkg/events"
	"github.com/slotlink/api/pkg/logger"
)

// ScheduleView is the public schedule page payload: the owner's visible
// profile plus server-computed free slots.
type ScheduleView struct {
	Owner *domain.PublicProfile `json:"owner"`
	Free  []slots.Interval      `json:"free_slots"`
	Busy  []domain.BusySlot     `json:"busy"`
}

// BookingStart is returned to the anonymous browser after slot selection.
type BookingStart struct {
	Nonce     string    `json:"nonce"`
	DeepLink  string    `json:"deep_link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BookingService drives the booking handshake and lifecycle. Nothing is
// written to the schedule until chat confirmation or an authenticated web
// create; the store's uniqueness constraint settles slot races.
type BookingService interface {
	Schedule(ctx context.Context, slug string) (*ScheduleView, error)
	StartNonce(ctx context.Context, req *domain.BookingRequest) (*BookingStart, error)
	Redeem(ctx context.Context, nonce string, chat domain.ChatUser) error
	Confirm(ctx context.Context, nonce string, chat domain.ChatUser) error
	CreateForClient(ctx context.Context, id Identity, req *domain.BookingRequest) (*domain.Booking, error)
	Pending(ctx context.Context, ownerUserID int64) ([]domain.Booking, error)
	Decide(ctx context.Context, id Identity, bookingID int64, action domain.DecisionAction, ref *MessageRef) (*domain.Booking, error)
}

type bookingService struct {
	bookings   postgres.BookingRepository
	handshakes postgres.HandshakeRepository
	users      postgres.UserRepository
	accounts   UserService
	messenger  Messenger
	bus        events.Publisher
	cfg        *config.Config
	now        func() time.Time
}

func NewBookingService(
	bookings postgres.BookingRepository,
	handshakes postgres.HandshakeRepository,
	users postgres.UserRepository,
	accounts UserService,
	messenger Messenger,
	bus events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		bookings:   bookings,
		handshakes: handshakes,
		users:      users,
		accounts:   accounts,
		messenger:  messenger,
		bus:        bus,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *bookingService) Schedule(ctx context.Context, slug string) (*ScheduleView, error) {
	owner, err := s.users.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, domain.ErrNotFound
	}

	loc := owner.Location()
	now := s.now().In(loc)
	days := s.cfg.App.ScheduleDays

	blocks := slots.DayBlocks(owner.WorkDays, owner.DayStart, owner.DayEnd)
	candidates := slots.Build(now, days, owner.SlotMinutes, blocks)

	busy, err := s.bookings.ListBusy(ctx, owner.ID, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}

	busyIvs := make([]slots.Interval, len(busy))
	for i, b := range busy {
		busyIvs[i] = slots.Interval{Start: b.StartAt, End: b.EndAt}
	}

	free := slots.Subtract(candidates, busyIvs)
	if free == nil {
		free = []slots.Interval{}
	}
	if busy == nil {
		busy = []domain.BusySlot{}
	}

	return &ScheduleView{Owner: owner.ToPublicProfile(), Free: free, Busy: busy}, nil
}

func (s *bookingService) StartNonce(ctx context.Context, req *domain.BookingRequest) (*BookingStart, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	owner, err := s.users.FindBySlug(ctx, req.OwnerSlug)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, domain.ErrNotFound
	}

	nonce, err := randomHex(18)
	if err != nil {
		return nil, err
	}

	n := &domain.BookingNonce{
		Nonce:               nonce,
		Status:              domain.NonceCreated,
		OwnerUserID:         owner.ID,
		OwnerTelegramUserID: owner.TelegramUserID,
		StartAt:             req.StartAt,
		EndAt:               req.EndAt,
		ClientName:          req.ClientName,
		ClientComment:       req.ClientComment,
		Expiring:            domain.Expiring{ExpiresAt: s.now().Add(s.cfg.Auth.NonceTTL)},
	}
	if err := s.handshakes.CreateBookingNonce(ctx, n); err != nil {
		return nil, fmt.Errorf("create booking nonce: %w", err)
	}

	return &BookingStart{
		Nonce:     nonce,
		DeepLink:  fmt.Sprintf("https://t.me/%s?start=b_%s", s.cfg.Telegram.BotUsername, nonce),
		ExpiresAt: n.ExpiresAt,
	}, nil
}

// Redeem handles the booking deep link in chat: show the candidate booking
// and the confirm button. Nothing is created yet.
func (s *bookingService) Redeem(ctx context.Context, nonce string, chat domain.ChatUser) error {
	n, err := s.handshakes.GetBookingNonce(ctx, nonce)
	if err != nil {
		return err
	}
	if n == nil {
		return domain.ErrNotFound
	}
	if n.Status == domain.NonceConsumed {
		return domain.ErrAlreadyDone
	}
	if n.Expired(s.now()) {
		return domain.ErrExpired
	}

	owner, err := s.users.FindByID(ctx, n.OwnerUserID)
	if err != nil {
		return err
	}
	loc := time.UTC
	ownerName := ""
	if owner != nil {
		loc = owner.Location()
		ownerName = owner.DisplayName
	}

	text := fmt.Sprintf(
		"<b>Booking request</b>\nWith: %s\nWhen: %s\nName: %s",
		html.EscapeString(ownerName),
		formatRange(n.StartAt, n.EndAt, loc),
		html.EscapeString(n.ClientName),
	)
	if n.ClientComment != "" {
		text += "\nComment: " + html.EscapeString(n.ClientComment)
	}
	text += "\n\nTap the button to send this request."

	actions := [][]Action{{{Text: "Confirm booking", Data: "book:" + nonce}}}
	if _, err := s.messenger.Send(chat.ID, text, actions); err != nil {
		return fmt.Errorf("send booking prompt: %w", err)
	}
	return nil
}

// Confirm is the only moment a handshake booking comes into existence. The
// booking is inserted first so the uniqueness constraint settles slot races;
// the nonce is consumed after the insert succeeded.
func (s *bookingService) Confirm(ctx context.Context, nonce string, chat domain.ChatUser) error {
	n, err := s.handshakes.GetBookingNonce(ctx, nonce)
	if err != nil {
		return err
	}
	if n == nil {
		return domain.ErrNotFound
	}
	if n.Status == domain.NonceConsumed {
		return domain.ErrAlreadyDone
	}
	if n.Expired(s.now()) {
		return domain.ErrExpired
	}

	client, err := s.accounts.EnsureUser(ctx, chat)
	if err != nil {
		return err
	}

	created, err := s.create(ctx, &domain.Booking{
		OwnerUserID:          n.OwnerUserID,
		OwnerTelegramUserID:  n.OwnerTelegramUserID,
		ClientUserID:         client.ID,
		ClientTelegramUserID: chat.TelegramID(),
		StartAt:              n.StartAt,
		EndAt:                n.EndAt,
		ClientName:           n.ClientName,
		ClientComment:        n.ClientComment,
	})
	if err != nil {
		return err
	}

	if _, err := s.handshakes.ConsumeBookingNonce(ctx, nonce); err != nil {
		logger.WarnContext(ctx, "Failed to consume booking nonce", "error", err)
	}

	text := fmt.Sprintf("Request sent for %s. You will get the decision here.",
		formatRange(created.StartAt, created.EndAt, time.UTC))
	if _, err := s.messenger.Send(chat.ID, text, nil); err != nil {
		logger.WarnContext(ctx, "Failed to ack booking confirmation", "error", err)
	}
	return nil
}

// CreateForClient is the authenticated web path: a logged-in client books a
// slot directly, without the chat handshake.
func (s *bookingService) CreateForClient(ctx context.Context, id Identity, req *domain.BookingRequest) (*domain.Booking, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	owner, err := s.users.FindBySlug(ctx, req.OwnerSlug)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, domain.ErrNotFound
	}

	return s.create(ctx, &domain.Booking{
		OwnerUserID:          owner.ID,
		OwnerTelegramUserID:  owner.TelegramUserID,
		ClientUserID:         id.UserID,
		ClientTelegramUserID: id.TelegramUserID,
		StartAt:              req.StartAt,
		EndAt:                req.EndAt,
		ClientName:           req.ClientName,
		ClientComment:        req.ClientComment,
	})
}

func (s *bookingService) Pending(ctx context.Context, ownerUserID int64) ([]domain.Booking, error) {
	pending, err := s.bookings.ListPending(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []domain.Booking{}
	}
	return pending, nil
}

// Decide settles a pending booking. Only the owner may decide, and the
// store-level status guard keeps the first decision final.
func (s *bookingService) Decide(ctx context.Context, id Identity, bookingID int64, action domain.DecisionAction, ref *MessageRef) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, domain.ErrNotFound
	}
	if !b.IsOwner(id.UserID, id.TelegramUserID) {
		return nil, domain.ErrForbidden
	}
	if b.Status != domain.BookingPending {
		return nil, domain.ErrAlreadyDecided
	}

	var approvedAt *time.Time
	if action == domain.DecisionApprove {
		t := s.now()
		approvedAt = &t
	}

	decided, err := s.bookings.Decide(ctx, bookingID, action.Status(), approvedAt)
	if err != nil {
		return nil, err
	}
	if decided == nil {
		return nil, domain.ErrAlreadyDecided
	}

	s.notifyClient(ctx, decided)

	if ref != nil {
		line := "✅ Approved"
		if decided.Status == domain.BookingRejected {
			line = "❌ Rejected"
		}
		if err := s.messenger.Edit(ref.ChatID, ref.MessageID, ref.Text+"\n\n"+line); err != nil {
			logger.WarnContext(ctx, "Failed to edit decision message", "error", err)
		}
	}

	if err := s.bus.Publish(ctx, events.BookingDecided, events.BookingDecidedEvent{
		BookingID: decided.ID,
		OwnerID:   decided.OwnerUserID,
		Status:    string(decided.Status),
		DecidedAt: s.now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish decision event", "error", err)
	}

	return decided, nil
}

func (s *bookingService) create(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	created, err := s.bookings.Create(ctx, b)
	if err != nil {
		return nil, err
	}

	s.notifyOwner(ctx, created)

	if err := s.bus.Publish(ctx, events.BookingCreated, events.BookingCreatedEvent{
		BookingID:    created.ID,
		OwnerUserID:  created.OwnerUserID,
		ClientUserID: created.ClientUserID,
		StartAt:      created.StartAt,
		EndAt:        created.EndAt,
		CreatedAt:    created.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish booking event", "error", err)
	}

	return created, nil
}

// notifyOwner delivers the approve/reject prompt to the owner's chat. Chat
// delivery is best effort; the booking exists either way and stays reachable
// through the pending list.
func (s *bookingService) notifyOwner(ctx context.Context, b *domain.Booking) {
	chatID, err := strconv.ParseInt(b.OwnerTelegramUserID, 10, 64)
	if err != nil {
		logger.WarnContext(ctx, "Owner has no usable chat id", "booking_id", b.ID)
		return
	}

	loc := time.UTC
	if owner, err := s.users.FindByID(ctx, b.OwnerUserID); err == nil && owner != nil {
		loc = owner.Location()
	}

	text := fmt.Sprintf(
		"<b>New booking request</b>\nWhen: %s\nFrom: %s",
		formatRange(b.StartAt, b.EndAt, loc),
		html.EscapeString(b.ClientName),
	)
	if b.ClientComment != "" {
		text += "\nComment: " + html.EscapeString(b.ClientComment)
	}

	actions := [][]Action{{
		{Text: "Approve", Data: fmt.Sprintf("approve:%d", b.ID)},
		{Text: "Reject", Data: fmt.Sprintf("reject:%d", b.ID)},
	}}
	if _, err := s.messenger.Send(chatID, text, actions); err != nil {
		logger.WarnContext(ctx, "Failed to notify owner", "booking_id", b.ID, "error", err)
	}
}

func (s *bookingService) notifyClient(ctx context.Context, b *domain.Booking) {
	chatID, err := strconv.ParseInt(b.ClientTelegramUserID, 10, 64)
	if err != nil {
		// web-only clients have no chat to notify
		return
	}

	loc := time.UTC
	if owner, err := s.users.FindByID(ctx, b.OwnerUserID); err == nil && owner != nil {
		loc = owner.Location()
	}

	when := formatRange(b.StartAt, b.EndAt, loc)
	text := fmt.Sprintf("✅ Your booking for %s was approved.", when)
	if b.Status == domain.BookingRejected {
		text = fmt.Sprintf("❌ Your booking for %s was rejected.", when)
	}
	if _, err := s.messenger.Send(chatID, text, nil); err != nil {
		logger.WarnContext(ctx, "Failed to notify client", "booking_id", b.ID, "error", err)
	}
}
