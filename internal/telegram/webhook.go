package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/slotlink/api/internal/domain"
	"github.com/slotlink/api/internal/service"
	"github.com/slotlink/api/pkg/logger"
)

// LoginFlow and BookingFlow are the slices of the service layer the webhook
// needs, kept narrow so tests can fake them.
type LoginFlow interface {
	Redeem(ctx context.Context, nonce string, chat domain.ChatUser) error
	Confirm(ctx context.Context, nonce string, chat domain.ChatUser) error
}

type BookingFlow interface {
	Redeem(ctx context.Context, nonce string, chat domain.ChatUser) error
	Confirm(ctx context.Context, nonce string, chat domain.ChatUser) error
	Decide(ctx context.Context, id service.Identity, bookingID int64, action domain.DecisionAction, ref *service.MessageRef) (*domain.Booking, error)
}

type Sender interface {
	Send(chatID int64, text string, actions [][]service.Action) (int, error)
	Answer(callbackID, text string) error
}

// Webhook receives Bot API updates. It always answers 200 so the Bot API
// does not redeliver; failures surface to the user as chat replies instead.
type Webhook struct {
	login    LoginFlow
	bookings BookingFlow
	sender   Sender
	secret   string
}

func NewWebhook(login LoginFlow, bookings BookingFlow, sender Sender, secret string) *Webhook {
	return &Webhook{login: login, bookings: bookings, sender: sender, secret: secret}
}

func (w *Webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.secret != "" && r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != w.secret {
		rw.WriteHeader(http.StatusUnauthorized)
		return
	}

	var update tele.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		logger.WarnContext(r.Context(), "Undecodable webhook update", "error", err)
		rw.WriteHeader(http.StatusOK)
		return
	}

	switch {
	case update.Message != nil && update.Message.Sender != nil:
		w.handleMessage(r.Context(), update.Message)
	case update.Callback != nil && update.Callback.Sender != nil:
		w.handleCallback(r.Context(), update.Callback)
	}

	rw.WriteHeader(http.StatusOK)
}

func (w *Webhook) handleMessage(ctx context.Context, msg *tele.Message) {
	chat := chatUser(msg.Sender)
	ctx = context.WithValue(ctx, logger.ChatIDKey, chat.TelegramID())

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/start") {
		return
	}
	payload := strings.TrimSpace(strings.TrimPrefix(text, "/start"))

	var err error
	switch {
	case payload == "":
		_, err = w.sender.Send(chat.ID, "Hi! Open a login or booking link to get started.", nil)
	case strings.HasPrefix(payload, "b_"):
		err = w.bookings.Redeem(ctx, strings.TrimPrefix(payload, "b_"), chat)
	default:
		err = w.login.Redeem(ctx, payload, chat)
	}

	if err != nil {
		logger.WarnContext(ctx, "Deep link rejected", "error", err)
		if _, sendErr := w.sender.Send(chat.ID, userText(err), nil); sendErr != nil {
			logger.ErrorContext(ctx, "Failed to send error reply", "error", sendErr)
		}
	}
}

func (w *Webhook) handleCallback(ctx context.Context, cb *tele.Callback) {
	chat := chatUser(cb.Sender)
	ctx = context.WithValue(ctx, logger.ChatIDKey, chat.TelegramID())

	data := strings.TrimPrefix(cb.Data, "\f")
	prefix, arg, _ := strings.Cut(data, ":")

	var ack string
	var err error

	switch prefix {
	case "login":
		if err = w.login.Confirm(ctx, arg, chat); err == nil {
			ack = "Confirmed. Check the message above."
		}
	case "book":
		if err = w.bookings.Confirm(ctx, arg, chat); err == nil {
			ack = "Request sent."
		}
	case "approve", "reject":
		ack, err = w.decide(ctx, cb, prefix, arg, chat)
	default:
		ack = "Unknown action."
	}

	if err != nil {
		logger.WarnContext(ctx, "Callback rejected", "action", prefix, "error", err)
		ack = userText(err)
	}
	if respondErr := w.sender.Answer(cb.ID, ack); respondErr != nil {
		logger.ErrorContext(ctx, "Failed to answer callback", "error", respondErr)
	}
}

func (w *Webhook) decide(ctx context.Context, cb *tele.Callback, prefix, arg string, chat domain.ChatUser) (string, error) {
	bookingID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return "", domain.ErrNotFound
	}
	action, _ := domain.ParseDecisionAction(prefix)

	var ref *service.MessageRef
	if cb.Message != nil && cb.Message.Chat != nil {
		ref = &service.MessageRef{
			ChatID:    cb.Message.Chat.ID,
			MessageID: cb.Message.ID,
			Text:      cb.Message.Text,
		}
	}

	id := service.Identity{TelegramUserID: chat.TelegramID()}
	decided, err := w.bookings.Decide(ctx, id, bookingID, action, ref)
	if err != nil {
		return "", err
	}
	if decided.Status == domain.BookingApproved {
		return "Approved.", nil
	}
	return "Rejected.", nil
}

func chatUser(u *tele.User) domain.ChatUser {
	return domain.ChatUser{ID: u.ID, Username: u.Username, FirstName: u.FirstName}
}

// userText maps flow errors to the reply shown in chat.
func userText(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "This link is not valid."
	case errors.Is(err, domain.ErrExpired):
		return "This link has expired. Start over and try again."
	case errors.Is(err, domain.ErrAlreadyDone):
		return "This link was already used."
	case errors.Is(err, domain.ErrNotReady):
		return "Open the login link first."
	case errors.Is(err, domain.ErrForbidden):
		return "This link belongs to someone else."
	case errors.Is(err, domain.ErrAlreadyDecided):
		return "This booking was already decided."
	case errors.Is(err, domain.ErrSlotTaken):
		return "That slot was just taken."
	case errors.Is(err, domain.ErrTokenAlreadyIssued):
		return "A login link is already active. Use it or wait for it to expire."
	default:
		return "Something went wrong. Please try again."
	}
}
