package notify

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	tgmodels "github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/expense-claims/internal/models"
	"gitlab.com/yelinaung/expense-claims/internal/notify/mocks"
)

func reviewedExpense(status models.ExpenseStatus) *models.Expense {
	return &models.Expense{
		ID:       "e1",
		Amount:   decimal.RequireFromString("250"),
		Category: models.CategoryOfficeSupplies,
		Date:     time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Status:   status,
		Approver: &models.UserSummary{Name: "Ada <Admin>"},
	}
}

func TestTelegramNotifier_NotifyStatusChanged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	chatID := int64(555)

	t.Run("sends HTML message to linked chat", func(t *testing.T) {
		t.Parallel()
		sender := mocks.NewMockSender()
		n := NewTelegramWithSender(sender)

		err := n.NotifyStatusChanged(ctx, &models.User{ID: "u1", TelegramChatID: &chatID}, reviewedExpense(models.ExpenseStatusApproved))
		require.NoError(t, err)

		msgs := sender.Messages()
		require.Len(t, msgs, 1)
		require.Equal(t, chatID, msgs[0].ChatID)
		require.Equal(t, tgmodels.ParseModeHTML, msgs[0].ParseMode)
		require.Contains(t, msgs[0].Text, "<b>approved</b>")
		require.Contains(t, msgs[0].Text, "250.00")
	})

	t.Run("skips owners without chat", func(t *testing.T) {
		t.Parallel()
		sender := mocks.NewMockSender()
		n := NewTelegramWithSender(sender)

		require.NoError(t, n.NotifyStatusChanged(ctx, &models.User{ID: "u1"}, reviewedExpense(models.ExpenseStatusApproved)))
		require.NoError(t, n.NotifyStatusChanged(ctx, nil, reviewedExpense(models.ExpenseStatusApproved)))
		require.Empty(t, sender.Messages())
	})

	t.Run("wraps send failure", func(t *testing.T) {
		t.Parallel()
		sender := mocks.NewMockSender()
		sender.SendMessageError = errors.New("chat not found")
		n := NewTelegramWithSender(sender)

		err := n.NotifyStatusChanged(ctx, &models.User{ID: "u1", TelegramChatID: &chatID}, reviewedExpense(models.ExpenseStatusRejected))
		require.Error(t, err)
		require.Contains(t, err.Error(), "chat not found")
	})
}

func TestFormatStatusMessage(t *testing.T) {
	t.Parallel()

	approved := FormatStatusMessage(reviewedExpense(models.ExpenseStatusApproved))
	require.Contains(t, approved, "✅")
	require.Contains(t, approved, "Office Supplies")
	require.Contains(t, approved, "2024-03-05")
	require.Contains(t, approved, "Ada &lt;Admin&gt;")

	rejected := FormatStatusMessage(reviewedExpense(models.ExpenseStatusRejected))
	require.Contains(t, rejected, "❌")
	require.Contains(t, rejected, "<b>rejected</b>")

	exp := reviewedExpense(models.ExpenseStatusApproved)
	exp.Approver = nil
	require.NotContains(t, FormatStatusMessage(exp), "Reviewed by")
}

func TestTelegramNotifier_HandleStart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("replies with a code that redeems to the chat", func(t *testing.T) {
		t.Parallel()
		sender := mocks.NewMockSender()
		n := NewTelegramWithSender(sender)

		n.handleStartCore(ctx, &tgmodels.Update{
			Message: &tgmodels.Message{Chat: tgmodels.Chat{ID: 98765}, Text: "/start"},
		})

		msgs := sender.Messages()
		require.Len(t, msgs, 1)
		require.Equal(t, int64(98765), msgs[0].ChatID)
		require.Equal(t, tgmodels.ParseModeHTML, msgs[0].ParseMode)
		require.NotContains(t, msgs[0].Text, "98765")

		m := regexp.MustCompile(`<code>([A-Z2-7]+)</code>`).FindStringSubmatch(msgs[0].Text)
		require.Len(t, m, 2)
		chatID, err := n.LinkCodes().Redeem(m[1])
		require.NoError(t, err)
		require.Equal(t, int64(98765), chatID)
	})

	t.Run("ignores updates without a message", func(t *testing.T) {
		t.Parallel()
		sender := mocks.NewMockSender()
		NewTelegramWithSender(sender).handleStartCore(ctx, &tgmodels.Update{})
		require.Empty(t, sender.Messages())
	})

	t.Run("send failure is swallowed", func(t *testing.T) {
		t.Parallel()
		sender := mocks.NewMockSender()
		sender.SendMessageError = errors.New("blocked by user")
		NewTelegramWithSender(sender).handleStartCore(ctx, &tgmodels.Update{
			Message: &tgmodels.Message{Chat: tgmodels.Chat{ID: 1}},
		})
		require.Empty(t, sender.Messages())
	})
}

func TestTelegramNotifier_StartWithoutBot(t *testing.T) {
	t.Parallel()
	// Returns immediately for a notifier built around a custom sender.
	NewTelegramWithSender(mocks.NewMockSender()).Start(context.Background())
}
