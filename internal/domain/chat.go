package domain

import "time"

type ChatStatus string

const (
	// ChatStatusActiveAI sessions are answered by the assistant.
	ChatStatusActiveAI ChatStatus = "ACTIVE_IA"
	// ChatStatusWaitingHuman sessions asked for a person and wait for an admin.
	ChatStatusWaitingHuman ChatStatus = "WAITING_HUMAN"
	// ChatStatusHumanIntervention sessions are served by the assigned admin.
	ChatStatusHumanIntervention ChatStatus = "HUMAN_INTERVENTION"
	ChatStatusClosed            ChatStatus = "CLOSED"
)

func (s ChatStatus) Valid() bool {
	switch s {
	case ChatStatusActiveAI, ChatStatusWaitingHuman, ChatStatusHumanIntervention, ChatStatusClosed:
		return true
	}
	return false
}

var chatTransitions = map[ChatStatus][]ChatStatus{
	ChatStatusActiveAI:          {ChatStatusWaitingHuman, ChatStatusHumanIntervention, ChatStatusClosed},
	ChatStatusWaitingHuman:      {ChatStatusActiveAI, ChatStatusHumanIntervention, ChatStatusClosed},
	ChatStatusHumanIntervention: {ChatStatusActiveAI, ChatStatusClosed},
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to ChatStatus) bool {
	for _, next := range chatTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type MessageSender string

const (
	SenderUser   MessageSender = "USER"
	SenderAI     MessageSender = "AI"
	SenderAdmin  MessageSender = "ADMIN"
	SenderSystem MessageSender = "SYSTEM"
)

// ChatSession is one conversation between an employee and the assistant or HR staff.
type ChatSession struct {
	ID               int64
	UserID           int64
	Title            string
	Status           ChatStatus
	AssignedAdminID  *int64
	EscalationReason string
	EscalatedAt      *time.Time
	LastMessageAt    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type ChatMessage struct {
	ID           int64
	SessionID    int64
	Sender       MessageSender
	SenderUserID *int64
	Content      string
	CreatedAt    time.Time
}

// StatusChange carries the columns written together with a status flip.
type StatusChange struct {
	AssignedAdminID  *int64
	ClearAssignee    bool
	EscalationReason *string
	EscalatedAt      *time.Time
}
