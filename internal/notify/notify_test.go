package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscalationText(t *testing.T) {
	e := Escalation{
		SessionID:   7,
		UserID:      3,
		UserName:    "Ana García",
		UserEmail:   "ana@example.com",
		Title:       "Nómina de marzo",
		Reason:      "employee asked for a person",
		EscalatedAt: time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC),
	}
	text := e.Text()
	assert.Contains(t, text, "Chat #7 needs an HR agent")
	assert.Contains(t, text, "Ana García <ana@example.com>")
	assert.Contains(t, text, "Reason: employee asked for a person")
	assert.Contains(t, text, "Topic: Nómina de marzo")
	assert.Contains(t, text, "Since: 2026-03-10 09:30 UTC")

	assert.Contains(t, Escalation{SessionID: 1, UserID: 9}.Text(), "user #9")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	err := NewLogNotifier(logger).SessionEscalated(context.Background(), Escalation{SessionID: 4, Reason: "urgent", Trigger: "rule"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "session_id=4")
	assert.Contains(t, buf.String(), "urgent")
}

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramNotifierSends(t *testing.T) {
	bot := &fakeSender{}
	n := &TelegramNotifier{bot: bot, chatID: -100, logger: logrus.New()}

	require.NoError(t, n.SessionEscalated(context.Background(), Escalation{SessionID: 2, Reason: "harassment"}))
	require.Len(t, bot.sent, 1)
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-100), msg.ChatID)
	assert.Contains(t, msg.Text, "Chat #2")
}

func TestTelegramNotifierWrapsError(t *testing.T) {
	n := &TelegramNotifier{bot: &fakeSender{err: errors.New("boom")}, chatID: 1, logger: logrus.New()}
	err := n.SessionEscalated(context.Background(), Escalation{SessionID: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session 5")
}

func TestNewTelegramNotifierValidates(t *testing.T) {
	_, err := NewTelegramNotifier("", 1, nil)
	assert.Error(t, err)
	_, err = NewTelegramNotifier("token", 0, nil)
	assert.Error(t, err)
}
