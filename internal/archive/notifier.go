package archive

import (
	"bytes"
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"expenso/internal/core"
)

// Notifier delivers a finished archive somewhere a person will see it.
type Notifier interface {
	Notify(ctx context.Context, userID string, ov core.MonthOverview, report []byte) error
}

// sender is the part of tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts a summary line and the CSV report to one chat.
type TelegramNotifier struct {
	bot    sender
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = false
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) Notify(_ context.Context, userID string, ov core.MonthOverview, report []byte) error {
	doc := tgbotapi.NewDocument(n.chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("expenses_%s_%s.csv", ov.Month, userID),
		Bytes: bytes.Clone(report),
	})
	doc.Caption = Caption(ov)
	if _, err := n.bot.Send(doc); err != nil {
		return fmt.Errorf("send telegram document: %w", err)
	}
	return nil
}

// Caption is the one-line summary sent with the report.
func Caption(ov core.MonthOverview) string {
	return fmt.Sprintf("Monthly expense data for %s: %d transactions, %s total, %s balance",
		ov.Month, ov.Count, ov.Total.String(), ov.Income.Sub(ov.Total).String())
}
