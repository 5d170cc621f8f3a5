// Package notifier pushes escalation alerts to an authority Telegram
// channel when the sweep stalls a complaint.
package notifier

import (
	"fmt"
	"log"

	"civicpulse/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier sends sweep escalation messages via the Bot API.
// A nil *TelegramNotifier is a valid no-op, so wiring it stays optional.
type TelegramNotifier struct {
	BotAPI *tgbotapi.BotAPI
	ChatID int64
}

// NewTelegramNotifier connects to the Bot API. Returns (nil, nil) when
// no token is configured, which disables notifications.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram notifier: %w", err)
	}
	bot.Debug = false
	log.Printf("Telegram notifier authorized on account %s", bot.Self.UserName)
	return &TelegramNotifier{BotAPI: bot, ChatID: chatID}, nil
}

// ComplaintStalled posts an alert naming the complaint and the trigger
// that stalled it. Send failures are logged and swallowed: alerting
// must never fail a sweep.
func (n *TelegramNotifier) ComplaintStalled(c *models.Complaint, trigger string) {
	if n == nil {
		return
	}
	text := fmt.Sprintf(
		"⚠️ Complaint stalled\nID: %s\nCategory: %s\nLocation: %s, %s\nTrigger: %s",
		c.ID, c.Category, c.City, c.State, trigger,
	)
	msg := tgbotapi.NewMessage(n.ChatID, text)
	if _, err := n.BotAPI.Send(msg); err != nil {
		log.Printf("ERROR: Failed to send stall alert for complaint %s: %v", c.ID, err)
	}
}
