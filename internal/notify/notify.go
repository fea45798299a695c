package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Escalation describes a chat session that is waiting for an HR agent.
type Escalation struct {
	SessionID   int64
	UserID      int64
	UserName    string
	UserEmail   string
	Title       string
	Reason      string
	Trigger     string
	EscalatedAt time.Time
}

// Notifier alerts HR staff about sessions that need a person.
type Notifier interface {
	SessionEscalated(ctx context.Context, e Escalation) error
}

// Text renders the alert shown to HR staff.
func (e Escalation) Text() string {
	who := e.UserName
	if who == "" {
		who = fmt.Sprintf("user #%d", e.UserID)
	}
	if e.UserEmail != "" {
		who = fmt.Sprintf("%s <%s>", who, e.UserEmail)
	}
	text := fmt.Sprintf("Chat #%d needs an HR agent\nEmployee: %s\nReason: %s", e.SessionID, who, e.Reason)
	if e.Title != "" {
		text += "\nTopic: " + e.Title
	}
	if !e.EscalatedAt.IsZero() {
		text += "\nSince: " + e.EscalatedAt.UTC().Format("2006-01-02 15:04 MST")
	}
	return text
}

type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SessionEscalated(_ context.Context, e Escalation) error {
	n.logger.WithFields(logrus.Fields{
		"session_id": e.SessionID,
		"user_id":    e.UserID,
		"trigger":    e.Trigger,
	}).Warnf("chat session waiting for an HR agent: %s", e.Reason)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
