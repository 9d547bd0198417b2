// Package telegram is the chat transport: an outbound messenger over the
// Bot API and an inbound webhook that routes deep links and button taps.
package telegram

import (
	"fmt"
	"net/http"
	"strconv"

	tele "gopkg.in/telebot.v3"

	"github.com/slotlink/api/internal/service"
	"github.com/slotlink/api/pkg/config"
)

// NewBot builds a send-only bot client. Updates come in through the webhook,
// so no poller is attached.
func NewBot(cfg config.TelegramConfig) (*tele.Bot, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:       cfg.BotToken,
		Client:      &http.Client{Timeout: cfg.ClientTimeout},
		Synchronous: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return bot, nil
}

// Messenger adapts the bot client to the service-layer Messenger interface.
type Messenger struct {
	bot *tele.Bot
}

func NewMessenger(bot *tele.Bot) *Messenger {
	return &Messenger{bot: bot}
}

func (m *Messenger) Send(chatID int64, text string, actions [][]service.Action) (int, error) {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if markup := inlineMarkup(actions); markup != nil {
		opts.ReplyMarkup = markup
	}

	msg, err := m.bot.Send(tele.ChatID(chatID), text, opts)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return msg.ID, nil
}

func (m *Messenger) Edit(chatID int64, messageID int, text string) error {
	ref := &tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	if _, err := m.bot.Edit(ref, text, &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// Answer acknowledges a callback so the button stops spinning.
func (m *Messenger) Answer(callbackID, text string) error {
	return m.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

func inlineMarkup(actions [][]service.Action) *tele.ReplyMarkup {
	if len(actions) == 0 {
		return nil
	}
	rows := make([][]tele.InlineButton, len(actions))
	for i, row := range actions {
		rows[i] = make([]tele.InlineButton, len(row))
		for j, a := range row {
			rows[i][j] = tele.InlineButton{Text: a.Text, Data: a.Data}
		}
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}
