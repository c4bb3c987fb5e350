// Package notify tells expense owners about review decisions over Telegram.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/expense-claims/internal/logger"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

// SendTimeout bounds a single Telegram API call.
const SendTimeout = 10 * time.Second

// Sender is the part of the Telegram API the notifier uses.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error)
}

// Compile-time check that the real bot satisfies the interface.
var _ Sender = (*tgbot.Bot)(nil)

// TelegramNotifier sends status-change messages to owners with a linked chat.
type TelegramNotifier struct {
	sender Sender
	bot    *tgbot.Bot
	codes  *LinkCodes
}

// NewTelegram creates a notifier backed by the Telegram Bot API.
func NewTelegram(token string) (*TelegramNotifier, error) {
	n := &TelegramNotifier{codes: NewLinkCodes()}
	b, err := tgbot.New(token, tgbot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypePrefix, n.handleStart)

	n.sender = b
	n.bot = b
	return n, nil
}

// Start polls for bot commands until ctx is done. It is a no-op for
// notifiers built with a custom sender.
func (n *TelegramNotifier) Start(ctx context.Context) {
	if n.bot == nil {
		return
	}
	logger.Log.Info().Msg("Telegram bot started polling")
	n.bot.Start(ctx)
}

func (n *TelegramNotifier) handleStart(ctx context.Context, _ *tgbot.Bot, update *tgmodels.Update) {
	n.handleStartCore(ctx, update)
}

// LinkCodes returns the registry of codes issued by /start.
func (n *TelegramNotifier) LinkCodes() *LinkCodes {
	return n.codes
}

// handleStartCore replies with a one-time code to redeem via PUT /api/auth/me/telegram.
func (n *TelegramNotifier) handleStartCore(ctx context.Context, update *tgmodels.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	code, err := n.codes.Issue(chatID)
	if err != nil {
		logger.Log.Error().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to issue link code")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, SendTimeout)
	defer cancel()

	_, err = n.sender.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      FormatStartMessage(code),
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Warn().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to reply to /start")
	}
}

// FormatStartMessage tells a user which code links this chat for notifications.
func FormatStartMessage(code string) string {
	return fmt.Sprintf("👋 Your link code is <code>%s</code>.\n\n"+
		"Enter it in your expense claims account within %d minutes to be notified "+
		"when a claim is approved or rejected.", html.EscapeString(code), int(LinkCodeTTL.Minutes()))
}

// NewTelegramWithSender creates a notifier with a custom sender (for testing).
func NewTelegramWithSender(sender Sender) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, codes: NewLinkCodes()}
}

// NotifyStatusChanged messages owner about the new status of exp.
// Owners without a linked chat are skipped.
func (n *TelegramNotifier) NotifyStatusChanged(ctx context.Context, owner *models.User, exp *models.Expense) error {
	if owner == nil || owner.TelegramChatID == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, SendTimeout)
	defer cancel()

	_, err := n.sender.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    *owner.TelegramChatID,
		Text:      FormatStatusMessage(exp),
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	logger.Log.Debug().
		Str("chat_hash", logger.HashChatID(*owner.TelegramChatID)).
		Str("expense_id", exp.ID).
		Msg("Sent status notification")
	return nil
}

// FormatStatusMessage renders the HTML message for a reviewed expense.
func FormatStatusMessage(exp *models.Expense) string {
	icon := "✅"
	if exp.Status == models.ExpenseStatusRejected {
		icon = "❌"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Your expense claim was <b>%s</b>\n\n", icon, html.EscapeString(string(exp.Status)))
	fmt.Fprintf(&sb, "Amount: <code>%s</code>\n", exp.Amount.StringFixed(2))
	fmt.Fprintf(&sb, "Category: %s\n", html.EscapeString(string(exp.Category)))
	fmt.Fprintf(&sb, "Date: %s", exp.Date.Format(models.DateLayout))
	if exp.Approver != nil && exp.Approver.Name != "" {
		fmt.Fprintf(&sb, "\nReviewed by: %s", html.EscapeString(exp.Approver.Name))
	}
	return sb.String()
}
