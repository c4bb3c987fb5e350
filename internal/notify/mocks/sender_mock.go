// Package mocks provides a fake Telegram sender for notification tests.
package mocks

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// SentMessage captures a message sent via MockSender.
type SentMessage struct {
	ChatID    any
	Text      string
	ParseMode models.ParseMode
}

// MockSender records messages instead of calling Telegram.
type MockSender struct {
	mu sync.RWMutex

	SentMessages []SentMessage

	// SendMessageError allows simulating SendMessage failures.
	SendMessageError error

	// NextMessageID is auto-incremented for each sent message.
	NextMessageID int
}

// NewMockSender creates a new MockSender instance.
func NewMockSender() *MockSender {
	return &MockSender{
		SentMessages:  make([]SentMessage, 0),
		NextMessageID: 1000,
	}
}

// SendMessage simulates sending a message.
func (m *MockSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendMessageError != nil {
		return nil, m.SendMessageError
	}

	m.SentMessages = append(m.SentMessages, SentMessage{
		ChatID:    params.ChatID,
		Text:      params.Text,
		ParseMode: params.ParseMode,
	})

	msgID := m.NextMessageID
	m.NextMessageID++

	chatID, _ := params.ChatID.(int64)
	return &models.Message{
		ID:   msgID,
		Chat: models.Chat{ID: chatID},
		Text: params.Text,
	}, nil
}

// Messages returns a copy of the recorded messages.
func (m *MockSender) Messages() []SentMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SentMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}
