package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/slotlink/api/internal/domain"
	"github.com/slotlink/api/internal/http/middleware"
	"github.com/slotlink/api/internal/service"
	"github.com/slotlink/api/pkg/config"
	"github.com/slotlink/api/pkg/session"
)

type fakeLogins struct {
	start        *service.LoginStart
	credential   string
	finishErr    error
	finishCalled int
}

func (f *fakeLogins) Start(context.Context) (*service.LoginStart, error) {
	return f.start, nil
}

func (f *fakeLogins) Redeem(context.Context, string, domain.ChatUser) error { return nil }

func (f *fakeLogins) Confirm(context.Context, string, domain.ChatUser) error { return nil }

func (f *fakeLogins) Finish(context.Context, string) (string, error) {
	f.finishCalled++
	if f.finishErr != nil {
		return "", f.finishErr
	}
	return f.credential, nil
}

func newTestHandlers(logins service.LoginService) *Handlers {
	cfg := &config.Config{}
	sessions := session.NewManager("test-secret", time.Hour)
	return New(logins, nil, nil, sessions, cfg)
}

func TestStartLoginReturnsDeepLink(t *testing.T) {
	logins := &fakeLogins{start: &service.LoginStart{
		Nonce:    "abc",
		DeepLink: "https://t.me/slotlink_bot?start=abc",
	}}
	h := newTestHandlers(logins)

	req := httptest.NewRequest("POST", "/api/v1/auth/telegram/start", nil)
	rec := httptest.NewRecorder()
	h.StartLogin(rec, req)

	if rec.Code != 201 {
		t.Fatalf("status %d", rec.Code)
	}
	var body service.LoginStart
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.DeepLink != logins.start.DeepLink {
		t.Fatalf("deep link %q", body.DeepLink)
	}
}

func TestFinishLoginPreviewBotKeepsTokenAlive(t *testing.T) {
	logins := &fakeLogins{credential: "jwt"}
	h := newTestHandlers(logins)

	agents := []string{
		"TelegramBot (like TwitterBot)",
		"Mozilla/5.0 (compatible; Discordbot/2.0)",
		"Slackbot-LinkExpanding 1.0",
		"facebookexternalhit/1.1",
		"WhatsApp/2.19.81",
	}
	for _, ua := range agents {
		req := httptest.NewRequest("GET", "/api/v1/auth/telegram/finish?token=tok", nil)
		req.Header.Set("User-Agent", ua)
		rec := httptest.NewRecorder()
		h.FinishLogin(rec, req)

		if rec.Code != 200 {
			t.Fatalf("%s: status %d", ua, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Open it in a browser") {
			t.Fatalf("%s: body %q", ua, rec.Body.String())
		}
	}
	if logins.finishCalled != 0 {
		t.Fatalf("preview crawlers consumed the token %d times", logins.finishCalled)
	}
}

func TestFinishLoginSetsSessionCookie(t *testing.T) {
	logins := &fakeLogins{credential: "signed-session"}
	h := newTestHandlers(logins)

	req := httptest.NewRequest("GET", "/api/v1/auth/telegram/finish?token=tok", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	rec := httptest.NewRecorder()
	h.FinishLogin(rec, req)

	if rec.Code != 302 {
		t.Fatalf("status %d, want redirect", rec.Code)
	}

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			found = true
			if c.Value != "signed-session" || !c.HttpOnly || !c.Secure {
				t.Fatalf("cookie attributes wrong: %+v", c)
			}
		}
	}
	if !found {
		t.Fatal("session cookie not set")
	}
}

func TestFinishLoginMissingToken(t *testing.T) {
	h := newTestHandlers(&fakeLogins{})

	req := httptest.NewRequest("GET", "/api/v1/auth/telegram/finish", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	rec := httptest.NewRecorder()
	h.FinishLogin(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestFinishLoginInvalidToken(t *testing.T) {
	h := newTestHandlers(&fakeLogins{finishErr: domain.ErrInvalidToken})

	req := httptest.NewRequest("GET", "/api/v1/auth/telegram/finish?token=used", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	rec := httptest.NewRecorder()
	h.FinishLogin(rec, req)

	if rec.Code != 401 {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestMeAnonymous(t *testing.T) {
	h := newTestHandlers(&fakeLogins{})

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	var body map[string]any
	json.NewDecoder(rec.Body).Decode(&body)
	if ok, _ := body["ok"].(bool); ok {
		t.Fatalf("anonymous probe returned ok=true: %v", body)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	h := newTestHandlers(&fakeLogins{})

	req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != 204 {
		t.Fatalf("status %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != middleware.SessionCookie || cookies[0].MaxAge >= 0 {
		t.Fatalf("cookie not cleared: %+v", cookies)
	}
}
