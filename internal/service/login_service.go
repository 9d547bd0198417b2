package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slotlink/api/internal/domain"
	"github.com/slotlink/api/internal/repo/postgres"
	"github.com/slotlink/api/pkg/config"
	"github.com/slotlink/api/pkg/events"
	"github.com/slotlink/api/pkg/logger"
	"github.com/slotlink/api/pkg/session"
)

// LoginStart is handed to the anonymous browser: the nonce to poll with is
// implicit in the deep link the user opens in chat.
type LoginStart struct {
	Nonce     string    `json:"nonce"`
	DeepLink  string    `json:"deep_link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginService drives the cross-channel login handshake. The browser calls
// Start and Finish; Redeem and Confirm arrive through the chat webhook.
type LoginService interface {
	Start(ctx context.Context) (*LoginStart, error)
	Redeem(ctx context.Context, nonce string, chat domain.ChatUser) error
	Confirm(ctx context.Context, nonce string, chat domain.ChatUser) error
	Finish(ctx context.Context, token string) (string, error)
}

type loginService struct {
	handshakes postgres.HandshakeRepository
	users      UserService
	messenger  Messenger
	sessions   *session.Manager
	bus        events.Publisher
	cfg        *config.Config
	now        func() time.Time
}

func NewLoginService(
	handshakes postgres.HandshakeRepository,
	users UserService,
	messenger Messenger,
	sessions *session.Manager,
	bus events.Publisher,
	cfg *config.Config,
) LoginService {
	return &loginService{
		handshakes: handshakes,
		users:      users,
		messenger:  messenger,
		sessions:   sessions,
		bus:        bus,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *loginService) Start(ctx context.Context) (*LoginStart, error) {
	nonce, err := randomHex(16)
	if err != nil {
		return nil, err
	}

	n := &domain.LoginNonce{
		Nonce:    nonce,
		Status:   domain.NonceCreated,
		Expiring: domain.Expiring{ExpiresAt: s.now().Add(s.cfg.Auth.NonceTTL)},
	}
	if err := s.handshakes.CreateLoginNonce(ctx, n); err != nil {
		return nil, fmt.Errorf("create login nonce: %w", err)
	}

	return &LoginStart{
		Nonce:     nonce,
		DeepLink:  fmt.Sprintf("https://t.me/%s?start=%s", s.cfg.Telegram.BotUsername, nonce),
		ExpiresAt: n.ExpiresAt,
	}, nil
}

// Redeem handles the deep link landing in chat. It binds the nonce to the
// chat identity and sends the confirm prompt. Repeat taps by the same
// identity just re-send the prompt; a different identity is turned away.
func (s *loginService) Redeem(ctx context.Context, nonce string, chat domain.ChatUser) error {
	n, err := s.handshakes.GetLoginNonce(ctx, nonce)
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

	user, err := s.users.EnsureUser(ctx, chat)
	if err != nil {
		return err
	}

	if n.Status == domain.NonceLinked {
		if n.TelegramUserID != chat.TelegramID() {
			return domain.ErrForbidden
		}
	} else {
		linked, err := s.handshakes.LinkLoginNonce(ctx, nonce, chat.TelegramID(), user.ID)
		if err != nil {
			return err
		}
		if !linked {
			// lost the linking race; re-read to see who holds the nonce now
			n, err = s.handshakes.GetLoginNonce(ctx, nonce)
			if err != nil {
				return err
			}
			if n == nil || n.Status == domain.NonceConsumed {
				return domain.ErrAlreadyDone
			}
			if n.TelegramUserID != chat.TelegramID() {
				return domain.ErrForbidden
			}
		}
	}

	text := fmt.Sprintf(
		"You are about to log in as <b>%s</b>.\nTap the button below to confirm.",
		html.EscapeString(user.DisplayName),
	)
	actions := [][]Action{{{Text: "Confirm login", Data: "login:" + nonce}}}
	if _, err := s.messenger.Send(chat.ID, text, actions); err != nil {
		return fmt.Errorf("send login prompt: %w", err)
	}
	return nil
}

// Confirm is the button tap. Consuming the nonce is the serialization point;
// only the winner mints a login token and gets the finish link.
func (s *loginService) Confirm(ctx context.Context, nonce string, chat domain.ChatUser) error {
	n, err := s.handshakes.GetLoginNonce(ctx, nonce)
	if err != nil {
		return err
	}
	if n == nil {
		return domain.ErrNotFound
	}
	if n.Status == domain.NonceConsumed {
		return domain.ErrAlreadyDone
	}
	if n.Status != domain.NonceLinked || n.UserID == nil {
		return domain.ErrNotReady
	}
	if n.TelegramUserID != chat.TelegramID() {
		return domain.ErrForbidden
	}
	if n.Expired(s.now()) {
		return domain.ErrExpired
	}

	active, err := s.handshakes.ActiveLoginToken(ctx, *n.UserID, s.now())
	if err != nil {
		return err
	}
	if active != nil {
		return domain.ErrTokenAlreadyIssued
	}

	consumed, err := s.handshakes.ConsumeLoginNonce(ctx, nonce)
	if err != nil {
		return err
	}
	if !consumed {
		return domain.ErrAlreadyDone
	}

	token := uuid.NewString()
	t := &domain.LoginToken{
		Token:          token,
		Status:         domain.TokenActive,
		UserID:         *n.UserID,
		TelegramUserID: n.TelegramUserID,
		Expiring:       domain.Expiring{ExpiresAt: s.now().Add(s.cfg.Auth.LoginTokenTTL)},
	}
	if err := s.handshakes.CreateLoginToken(ctx, t); err != nil {
		return fmt.Errorf("create login token: %w", err)
	}

	finish := fmt.Sprintf("%s/api/v1/auth/telegram/finish?token=%s",
		strings.TrimRight(s.cfg.App.BaseURL, "/"), token)
	text := "Login confirmed. Open this link in your browser to finish:\n" + finish
	if _, err := s.messenger.Send(chat.ID, text, nil); err != nil {
		return fmt.Errorf("send finish link: %w", err)
	}
	return nil
}

// Finish redeems a login token for a session credential. The conditional
// consume makes the token single-use; everything after it is non-secret.
func (s *loginService) Finish(ctx context.Context, token string) (string, error) {
	t, err := s.handshakes.GetLoginToken(ctx, token)
	if err != nil {
		return "", err
	}
	if t == nil || t.Status != domain.TokenActive {
		return "", domain.ErrInvalidToken
	}
	if t.Expired(s.now()) {
		return "", domain.ErrExpired
	}

	consumed, err := s.handshakes.ConsumeLoginToken(ctx, token)
	if err != nil {
		return "", err
	}
	if !consumed {
		return "", domain.ErrInvalidToken
	}

	credential, err := s.sessions.Issue(t.UserID, t.TelegramUserID)
	if err != nil {
		return "", fmt.Errorf("issue session: %w", err)
	}

	if err := s.bus.Publish(ctx, events.LoginCompleted, events.LoginCompletedEvent{
		UserID:         t.UserID,
		TelegramUserID: t.TelegramUserID,
		CompletedAt:    s.now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish login event", "error", err)
	}

	return credential, nil
}
