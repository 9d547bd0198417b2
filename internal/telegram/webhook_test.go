package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	tele "gopkg.in/telebot.v3"

	"github.com/slotlink/api/internal/domain"
	"github.com/slotlink/api/internal/service"
)

type flowCall struct {
	method string
	arg    string
	chat   domain.ChatUser
}

type fakeLoginFlow struct {
	calls []flowCall
	err   error
}

func (f *fakeLoginFlow) Redeem(_ context.Context, nonce string, chat domain.ChatUser) error {
	f.calls = append(f.calls, flowCall{method: "redeem", arg: nonce, chat: chat})
	return f.err
}

func (f *fakeLoginFlow) Confirm(_ context.Context, nonce string, chat domain.ChatUser) error {
	f.calls = append(f.calls, flowCall{method: "confirm", arg: nonce, chat: chat})
	return f.err
}

type decideCall struct {
	id        service.Identity
	bookingID int64
	action    domain.DecisionAction
	ref       *service.MessageRef
}

type fakeBookingFlow struct {
	calls   []flowCall
	decides []decideCall
	decided *domain.Booking
	err     error
}

func (f *fakeBookingFlow) Redeem(_ context.Context, nonce string, chat domain.ChatUser) error {
	f.calls = append(f.calls, flowCall{method: "redeem", arg: nonce, chat: chat})
	return f.err
}

func (f *fakeBookingFlow) Confirm(_ context.Context, nonce string, chat domain.ChatUser) error {
	f.calls = append(f.calls, flowCall{method: "confirm", arg: nonce, chat: chat})
	return f.err
}

func (f *fakeBookingFlow) Decide(_ context.Context, id service.Identity, bookingID int64, action domain.DecisionAction, ref *service.MessageRef) (*domain.Booking, error) {
	f.decides = append(f.decides, decideCall{id: id, bookingID: bookingID, action: action, ref: ref})
	if f.err != nil {
		return nil, f.err
	}
	return f.decided, nil
}

type fakeSender struct {
	sent    []string
	answers []string
}

func (f *fakeSender) Send(_ int64, text string, _ [][]service.Action) (int, error) {
	f.sent = append(f.sent, text)
	return 1, nil
}

func (f *fakeSender) Answer(_ string, text string) error {
	f.answers = append(f.answers, text)
	return nil
}

func post(t *testing.T, w *Webhook, update tele.Update, secret string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(update)
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	req := httptest.NewRequest("POST", "/telegram/webhook", bytes.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
	}
	rec := httptest.NewRecorder()
	w.ServeHTTP(rec, req)
	return rec
}

func messageUpdate(text string) tele.Update {
	return tele.Update{Message: &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: 42, Username: "tester", FirstName: "Terry"},
	}}
}

func callbackUpdate(data string) tele.Update {
	return tele.Update{Callback: &tele.Callback{
		ID:     "cb-1",
		Data:   data,
		Sender: &tele.User{ID: 42, Username: "tester", FirstName: "Terry"},
		Message: &tele.Message{
			ID:     7,
			Text:   "New booking request",
			Chat:   &tele.Chat{ID: 42},
			Sender: &tele.User{ID: 99},
		},
	}}
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	login := &fakeLoginFlow{}
	w := NewWebhook(login, &fakeBookingFlow{}, &fakeSender{}, "top-secret")

	rec := post(t, w, messageUpdate("/start abc"), "wrong")
	if rec.Code != 401 {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	if len(login.calls) != 0 {
		t.Fatal("flow must not run without the secret")
	}
}

func TestWebhookRoutesLoginDeepLink(t *testing.T) {
	login := &fakeLoginFlow{}
	w := NewWebhook(login, &fakeBookingFlow{}, &fakeSender{}, "s")

	rec := post(t, w, messageUpdate("/start abc123"), "s")
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	if len(login.calls) != 1 || login.calls[0].method != "redeem" || login.calls[0].arg != "abc123" {
		t.Fatalf("login flow calls: %+v", login.calls)
	}
	if login.calls[0].chat.ID != 42 || login.calls[0].chat.Username != "tester" {
		t.Fatalf("chat identity lost: %+v", login.calls[0].chat)
	}
}

func TestWebhookRoutesBookingDeepLink(t *testing.T) {
	bookings := &fakeBookingFlow{}
	w := NewWebhook(&fakeLoginFlow{}, bookings, &fakeSender{}, "")

	post(t, w, messageUpdate("/start b_xyz"), "")
	if len(bookings.calls) != 1 || bookings.calls[0].arg != "xyz" {
		t.Fatalf("booking flow calls: %+v", bookings.calls)
	}
}

func TestWebhookBareStartGreets(t *testing.T) {
	sender := &fakeSender{}
	login := &fakeLoginFlow{}
	w := NewWebhook(login, &fakeBookingFlow{}, sender, "")

	post(t, w, messageUpdate("/start"), "")
	if len(sender.sent) != 1 {
		t.Fatalf("expected greeting, got %v", sender.sent)
	}
	if len(login.calls) != 0 {
		t.Fatal("bare /start must not hit the login flow")
	}
}

func TestWebhookDeepLinkErrorRepliesInChat(t *testing.T) {
	sender := &fakeSender{}
	login := &fakeLoginFlow{err: domain.ErrExpired}
	w := NewWebhook(login, &fakeBookingFlow{}, sender, "")

	rec := post(t, w, messageUpdate("/start abc"), "")
	if rec.Code != 200 {
		t.Fatalf("errors must still return 200, got %d", rec.Code)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "This link has expired. Start over and try again." {
		t.Fatalf("error reply: %v", sender.sent)
	}
}

func TestWebhookLoginCallback(t *testing.T) {
	login := &fakeLoginFlow{}
	sender := &fakeSender{}
	w := NewWebhook(login, &fakeBookingFlow{}, sender, "")

	post(t, w, callbackUpdate("login:abc"), "")
	if len(login.calls) != 1 || login.calls[0].method != "confirm" || login.calls[0].arg != "abc" {
		t.Fatalf("login flow calls: %+v", login.calls)
	}
	if len(sender.answers) != 1 {
		t.Fatalf("callback not answered: %v", sender.answers)
	}
}

func TestWebhookBookingCallback(t *testing.T) {
	bookings := &fakeBookingFlow{}
	sender := &fakeSender{}
	w := NewWebhook(&fakeLoginFlow{}, bookings, sender, "")

	post(t, w, callbackUpdate("book:xyz"), "")
	if len(bookings.calls) != 1 || bookings.calls[0].method != "confirm" || bookings.calls[0].arg != "xyz" {
		t.Fatalf("booking flow calls: %+v", bookings.calls)
	}
	if sender.answers[0] != "Request sent." {
		t.Fatalf("ack %q", sender.answers[0])
	}
}

func TestWebhookDecisionCallback(t *testing.T) {
	bookings := &fakeBookingFlow{decided: &domain.Booking{ID: 7, Status: domain.BookingApproved}}
	sender := &fakeSender{}
	w := NewWebhook(&fakeLoginFlow{}, bookings, sender, "")

	post(t, w, callbackUpdate("approve:7"), "")
	if len(bookings.decides) != 1 {
		t.Fatalf("decides: %+v", bookings.decides)
	}
	d := bookings.decides[0]
	if d.bookingID != 7 || d.action != domain.DecisionApprove {
		t.Fatalf("decide call: %+v", d)
	}
	if d.id.TelegramUserID != "42" || d.id.UserID != 0 {
		t.Fatalf("identity: %+v", d.id)
	}
	if d.ref == nil || d.ref.MessageID != 7 || d.ref.ChatID != 42 || d.ref.Text != "New booking request" {
		t.Fatalf("message ref: %+v", d.ref)
	}
	if sender.answers[0] != "Approved." {
		t.Fatalf("ack %q", sender.answers[0])
	}
}

func TestWebhookDecisionCallbackError(t *testing.T) {
	bookings := &fakeBookingFlow{err: domain.ErrAlreadyDecided}
	sender := &fakeSender{}
	w := NewWebhook(&fakeLoginFlow{}, bookings, sender, "")

	rec := post(t, w, callbackUpdate("reject:7"), "")
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	if sender.answers[0] != "This booking was already decided." {
		t.Fatalf("ack %q", sender.answers[0])
	}
}

func TestWebhookUnknownCallback(t *testing.T) {
	sender := &fakeSender{}
	w := NewWebhook(&fakeLoginFlow{}, &fakeBookingFlow{}, sender, "")

	post(t, w, callbackUpdate("shrug:1"), "")
	if sender.answers[0] != "Unknown action." {
		t.Fatalf("ack %q", sender.answers[0])
	}
}

func TestWebhookIgnoresNonStartMessages(t *testing.T) {
	login := &fakeLoginFlow{}
	sender := &fakeSender{}
	w := NewWebhook(login, &fakeBookingFlow{}, sender, "")

	rec := post(t, w, messageUpdate("hello there"), "")
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	if len(login.calls) != 0 || len(sender.sent) != 0 {
		t.Fatal("plain text must be ignored")
	}
}
