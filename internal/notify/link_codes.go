package notify

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// LinkCodeTTL is how long a code issued by /start can be redeemed.
const LinkCodeTTL = 10 * time.Minute

// ErrInvalidLinkCode is returned for unknown, used or expired link codes.
var ErrInvalidLinkCode = errors.New("invalid or expired link code")

var linkCodeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type linkCode struct {
	chatID    int64
	expiresAt time.Time
}

// LinkCodes hands out single-use codes that prove control of a Telegram chat.
// A chat holds at most one live code.
type LinkCodes struct {
	mu     sync.Mutex
	codes  map[string]linkCode
	byChat map[int64]string
	now    func() time.Time
}

// NewLinkCodes creates an empty code registry.
func NewLinkCodes() *LinkCodes {
	return &LinkCodes{
		codes:  make(map[string]linkCode),
		byChat: make(map[int64]string),
		now:    time.Now,
	}
}

// Issue creates a code for chatID, replacing any earlier code for that chat.
func (l *LinkCodes) Issue(chatID int64) (string, error) {
	raw := make([]byte, 5)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate link code: %w", err)
	}
	code := linkCodeEncoding.EncodeToString(raw)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked()
	if old, ok := l.byChat[chatID]; ok {
		delete(l.codes, old)
	}
	l.codes[code] = linkCode{chatID: chatID, expiresAt: l.now().Add(LinkCodeTTL)}
	l.byChat[chatID] = code
	return code, nil
}

// Redeem consumes code and returns the chat it was issued to.
func (l *LinkCodes) Redeem(code string) (int64, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.codes[code]
	if !ok {
		return 0, ErrInvalidLinkCode
	}
	delete(l.codes, code)
	delete(l.byChat, entry.chatID)
	if !l.now().Before(entry.expiresAt) {
		return 0, ErrInvalidLinkCode
	}
	return entry.chatID, nil
}

func (l *LinkCodes) pruneLocked() {
	now := l.now()
	for code, entry := range l.codes {
		if !now.Before(entry.expiresAt) {
			delete(l.codes, code)
			delete(l.byChat, entry.chatID)
		}
	}
}
