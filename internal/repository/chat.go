package repository

import (
	"context"

	"pulse/internal/domain"
)

// ChatRepository persists chat sessions and their messages.
type ChatRepository interface {
	Init(ctx context.Context) error
	CreateSession(ctx context.Context, session *domain.ChatSession) (int64, error)
	GetSession(ctx context.Context, id int64) (*domain.ChatSession, error)
	ListSessionsByUser(ctx context.Context, userID int64) ([]domain.ChatSession, error)
	ListSessionsByStatus(ctx context.Context, statuses ...domain.ChatStatus) ([]domain.ChatSession, error)
	CountByStatus(ctx context.Context) (map[domain.ChatStatus]int, error)
	// TransitionStatus moves a session from one status to another only if
	// it is still in the expected status. ErrConflict otherwise.
	TransitionStatus(ctx context.Context, id int64, from, to domain.ChatStatus, change domain.StatusChange) error

	AddMessage(ctx context.Context, msg *domain.ChatMessage) (int64, error)
	// AddMessageIfStatus stores the message only while the session is in the
	// given status. ErrConflict otherwise.
	AddMessageIfStatus(ctx context.Context, msg *domain.ChatMessage, status domain.ChatStatus) (int64, error)
	ListMessages(ctx context.Context, sessionID, afterID int64, limit int) ([]domain.ChatMessage, error)
	// RecentMessages returns the last limit USER, AI and ADMIN messages, oldest first.
	RecentMessages(ctx context.Context, sessionID int64, limit int) ([]domain.ChatMessage, error)
}
