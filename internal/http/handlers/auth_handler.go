package handlers

import (
	"net/http"
	"strings"

	"github.com/slotlink/api/internal/http/middleware"
	"github.com/slotlink/api/internal/http/response"
)

// previewBotAgents are link-preview crawlers that fetch the finish URL
// before the human does. They must never consume the login token.
var previewBotAgents = []string{
	"telegrambot",
	"discordbot",
	"slackbot",
	"facebookexternalhit",
	"whatsapp",
}

func isPreviewBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, agent := range previewBotAgents {
		if strings.Contains(ua, agent) {
			return true
		}
	}
	return false
}

// StartLogin mints a login nonce and hands the browser the chat deep link.
func (h *Handlers) StartLogin(w http.ResponseWriter, r *http.Request) {
	start, err := h.logins.Start(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, start)
}

// FinishLogin redeems the login token from the chat message and sets the
// session cookie. Preview crawlers get a harmless page and the token lives.
func (h *Handlers) FinishLogin(w http.ResponseWriter, r *http.Request) {
	if isPreviewBot(r.UserAgent()) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Login link. Open it in a browser."))
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		response.BadRequest(w, "token is required")
		return
	}

	credential, err := h.logins.Finish(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    credential,
		Path:     "/",
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me is the session probe. It never errors: anonymous callers simply get
// ok=false so the frontend can render the login button.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	if claims == nil {
		response.WriteJSON(w, http.StatusOK, map[string]any{"ok": false})
		return
	}

	user, err := h.users.Get(r.Context(), claims.Sub)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "user": user})
}
