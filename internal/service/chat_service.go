package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"pulse/internal/assistant"
	"pulse/internal/domain"
	"pulse/internal/llm"
	"pulse/internal/notify"
	"pulse/internal/repository"
)

const (
	maxMessageRunes     = 4000
	defaultHistoryLimit = 20

	triggerUser      = "user"
	triggerAssistant = "assistant"
)

// SnapshotLoader provides the employee records injected into the prompt.
type SnapshotLoader interface {
	Load(ctx context.Context, userID int64) (*assistant.Snapshot, error)
}

// TurnEvents receives a message turn as it happens. Nil callbacks are skipped.
type TurnEvents struct {
	UserMessage func(msg domain.ChatMessage)
	Token       func(chunk string) error
	Escalated   func(session domain.ChatSession)
}

// TurnResult is everything a user message produced.
type TurnResult struct {
	Session     domain.ChatSession
	UserMessage domain.ChatMessage
	Reply       *domain.ChatMessage
	System      []domain.ChatMessage
	Escalated   bool
	// Discarded is set when the session left ACTIVE_IA while the reply was generated.
	Discarded bool
}

// ChatService runs the assistant conversation and the human intervention protocol.
type ChatService interface {
	CreateSession(ctx context.Context, user *domain.User, title string) (*domain.ChatSession, error)
	ListSessions(ctx context.Context, userID int64) ([]domain.ChatSession, error)
	GetSession(ctx context.Context, actor *domain.User, id int64) (*domain.ChatSession, error)
	Messages(ctx context.Context, actor *domain.User, id, afterID int64) ([]domain.ChatMessage, error)
	SendMessage(ctx context.Context, user *domain.User, id int64, content string, events TurnEvents) (*TurnResult, error)
	Escalate(ctx context.Context, user *domain.User, id int64, reason string) (*domain.ChatSession, error)
	CancelEscalation(ctx context.Context, user *domain.User, id int64) (*domain.ChatSession, error)
	Close(ctx context.Context, actor *domain.User, id int64) (*domain.ChatSession, error)

	ListByStatus(ctx context.Context, statuses ...domain.ChatStatus) ([]domain.ChatSession, error)
	Intervene(ctx context.Context, admin *domain.User, id int64) (*domain.ChatSession, error)
	AdminMessage(ctx context.Context, admin *domain.User, id int64, content string) (*domain.ChatMessage, error)
	Release(ctx context.Context, admin *domain.User, id int64) (*domain.ChatSession, error)
}

type ChatConfig struct {
	HistoryLimit int
	Logger       *logrus.Logger
}

type chatService struct {
	chats    repository.ChatRepository
	loader   SnapshotLoader
	client   llm.Client
	detector *assistant.Detector
	notifier notify.Notifier
	cfg      ChatConfig
	locks    sessionLocks
	now      func() time.Time
}

func NewChatService(chats repository.ChatRepository, loader SnapshotLoader, client llm.Client, detector *assistant.Detector, notifier notify.Notifier, cfg ChatConfig) ChatService {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if detector == nil {
		detector = assistant.NewDetector(assistant.DefaultRules())
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(cfg.Logger)
	}
	return &chatService{
		chats:    chats,
		loader:   loader,
		client:   client,
		detector: detector,
		notifier: notifier,
		cfg:      cfg,
		locks:    sessionLocks{locks: make(map[int64]*sessionLock)},
		now:      time.Now,
	}
}

func (s *chatService) CreateSession(ctx context.Context, user *domain.User, title string) (*domain.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Conversation " + s.now().Format(time.DateOnly)
	}
	if utf8.RuneCountInString(title) > 120 {
		return nil, invalid("title", "must be at most 120 characters")
	}
	session := &domain.ChatSession{
		UserID: user.ID,
		Title:  title,
		Status: domain.ChatStatusActiveAI,
	}
	if _, err := s.chats.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *chatService) ListSessions(ctx context.Context, userID int64) ([]domain.ChatSession, error) {
	return s.chats.ListSessionsByUser(ctx, userID)
}

// GetSession returns the session if the actor owns it or is an admin.
func (s *chatService) GetSession(ctx context.Context, actor *domain.User, id int64) (*domain.ChatSession, error) {
	session, err := s.chats.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.UserID != actor.ID && !actor.IsAdmin() {
		return nil, ErrNotFound
	}
	return session, nil
}

func (s *chatService) Messages(ctx context.Context, actor *domain.User, id, afterID int64) ([]domain.ChatMessage, error) {
	if _, err := s.GetSession(ctx, actor, id); err != nil {
		return nil, err
	}
	if afterID < 0 {
		afterID = 0
	}
	return s.chats.ListMessages(ctx, id, afterID, 0)
}

func (s *chatService) SendMessage(ctx context.Context, user *domain.User, id int64, content string, events TurnEvents) (*TurnResult, error) {
	content, err := cleanContent(content)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	session, err := s.ownSession(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.ChatStatusClosed {
		return nil, ErrSessionClosed
	}

	userMsg := &domain.ChatMessage{
		SessionID:    id,
		Sender:       domain.SenderUser,
		SenderUserID: &user.ID,
		Content:      content,
	}
	if _, err := s.chats.AddMessage(ctx, userMsg); err != nil {
		return nil, err
	}
	if events.UserMessage != nil {
		events.UserMessage(*userMsg)
	}

	result := &TurnResult{Session: *session, UserMessage: *userMsg}
	if session.Status != domain.ChatStatusActiveAI {
		return result, nil
	}

	logger := s.cfg.Logger.WithFields(logrus.Fields{"session_id": id, "user_id": user.ID})

	if match, ok := s.detector.Detect(content); ok {
		logger.Infof("escalation rule %q matched keyword %q", match.Rule, match.Keyword)
		err := s.escalateTurn(ctx, user, session, match.Reason, "rule:"+match.Rule, result, events)
		switch {
		case errors.Is(err, ErrInvalidTransition):
			logger.Info("session left the assistant before the rule escalation")
			if fresh, err := s.chats.GetSession(ctx, id); err == nil {
				result.Session = *fresh
			}
		case err != nil:
			return nil, err
		}
		return result, nil
	}

	reply, handoff, err := s.generateReply(ctx, user, id, events)
	if err != nil {
		logger.Errorf("assistant reply failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}

	if reply != "" {
		aiMsg := &domain.ChatMessage{SessionID: id, Sender: domain.SenderAI, Content: reply}
		if _, err := s.chats.AddMessageIfStatus(ctx, aiMsg, domain.ChatStatusActiveAI); err != nil {
			if !errors.Is(err, repository.ErrConflict) {
				return nil, err
			}
			logger.Info("session left the assistant while replying, reply discarded")
			result.Discarded = true
		} else {
			result.Reply = aiMsg
		}
	}

	if handoff && !result.Discarded {
		logger.Info("assistant handed the conversation off")
		err := s.escalateTurn(ctx, user, session, "The assistant could not help and handed the conversation to HR.", triggerAssistant, result, events)
		if err != nil && !errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
	}

	if fresh, err := s.chats.GetSession(ctx, id); err == nil {
		result.Session = *fresh
	}
	return result, nil
}

// generateReply streams the model answer, hiding the hand-off marker from the caller.
func (s *chatService) generateReply(ctx context.Context, user *domain.User, id int64, events TurnEvents) (string, bool, error) {
	snapshot, err := s.loader.Load(ctx, user.ID)
	if err != nil {
		return "", false, fmt.Errorf("load employee context: %w", err)
	}
	history, err := s.chats.RecentMessages(ctx, id, s.cfg.HistoryLimit)
	if err != nil {
		return "", false, err
	}
	req := llm.Request{
		System:   assistant.BuildSystemPrompt(*snapshot, s.now()),
		Messages: assistant.History(history),
	}

	var (
		filter llm.HandoffFilter
		reply  strings.Builder
	)
	emit := func(text string) error {
		if text == "" {
			return nil
		}
		reply.WriteString(text)
		if events.Token != nil {
			return events.Token(text)
		}
		return nil
	}
	if _, err := s.client.Stream(ctx, req, func(chunk string) error {
		return emit(filter.Write(chunk))
	}); err != nil {
		return "", false, err
	}
	if err := emit(filter.Flush()); err != nil {
		return "", false, err
	}
	return strings.TrimSpace(reply.String()), filter.Seen(), nil
}

func (s *chatService) Escalate(ctx context.Context, user *domain.User, id int64, reason string) (*domain.ChatSession, error) {
	session, err := s.ownSession(ctx, user, id)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "The employee asked to talk to a person."
	}
	result := &TurnResult{}
	if err := s.escalateTurn(ctx, user, session, reason, triggerUser, result, TurnEvents{}); err != nil {
		return nil, err
	}
	return &result.Session, nil
}

func (s *chatService) escalateTurn(ctx context.Context, user *domain.User, session *domain.ChatSession, reason, trigger string, result *TurnResult, events TurnEvents) error {
	at := s.now().UTC()
	updated, note, err := s.transition(ctx, session, domain.ChatStatusWaitingHuman, domain.StatusChange{
		ClearAssignee:    true,
		EscalationReason: &reason,
		EscalatedAt:      &at,
	}, fmt.Sprintf("Conversation handed over to HR: %s An HR agent will join shortly.", reason))
	if err != nil {
		return err
	}
	result.Session = *updated
	result.Escalated = true
	if note != nil {
		result.System = append(result.System, *note)
	}
	if events.Escalated != nil {
		events.Escalated(*updated)
	}

	err = s.notifier.SessionEscalated(ctx, notify.Escalation{
		SessionID:   updated.ID,
		UserID:      user.ID,
		UserName:    user.FullName,
		UserEmail:   user.Email,
		Title:       updated.Title,
		Reason:      reason,
		Trigger:     trigger,
		EscalatedAt: at,
	})
	if err != nil {
		s.cfg.Logger.WithField("session_id", updated.ID).Warnf("escalation notification failed: %v", err)
	}
	return nil
}

func (s *chatService) CancelEscalation(ctx context.Context, user *domain.User, id int64) (*domain.ChatSession, error) {
	session, err := s.ownSession(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.ChatStatusWaitingHuman {
		return nil, fmt.Errorf("%w: session %d is %s", ErrInvalidTransition, id, session.Status)
	}
	updated, _, err := s.transition(ctx, session, domain.ChatStatusActiveAI, domain.StatusChange{},
		"The employee no longer needs an HR agent. The assistant is back.")
	return updated, err
}

func (s *chatService) Close(ctx context.Context, actor *domain.User, id int64) (*domain.ChatSession, error) {
	session, err := s.GetSession(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	by := "the employee"
	if actor.ID != session.UserID {
		by = actor.FullName + " (HR)"
	}
	updated, _, err := s.transition(ctx, session, domain.ChatStatusClosed, domain.StatusChange{},
		"Conversation closed by "+by+".")
	return updated, err
}

func (s *chatService) ListByStatus(ctx context.Context, statuses ...domain.ChatStatus) ([]domain.ChatSession, error) {
	if len(statuses) == 0 {
		statuses = []domain.ChatStatus{
			domain.ChatStatusWaitingHuman,
			domain.ChatStatusHumanIntervention,
			domain.ChatStatusActiveAI,
		}
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, invalid("status", "unknown status %q", st)
		}
	}
	return s.chats.ListSessionsByStatus(ctx, statuses...)
}

func (s *chatService) Intervene(ctx context.Context, admin *domain.User, id int64) (*domain.ChatSession, error) {
	if !admin.IsAdmin() {
		return nil, ErrForbidden
	}
	session, err := s.chats.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, _, err := s.transition(ctx, session, domain.ChatStatusHumanIntervention, domain.StatusChange{
		AssignedAdminID: &admin.ID,
	}, admin.FullName+" from HR joined the conversation.")
	return updated, err
}

func (s *chatService) AdminMessage(ctx context.Context, admin *domain.User, id int64, content string) (*domain.ChatMessage, error) {
	if !admin.IsAdmin() {
		return nil, ErrForbidden
	}
	content, err := cleanContent(content)
	if err != nil {
		return nil, err
	}
	session, err := s.chats.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.ChatStatusHumanIntervention {
		return nil, fmt.Errorf("%w: session %d is %s, intervene first", ErrInvalidTransition, id, session.Status)
	}
	if session.AssignedAdminID == nil || *session.AssignedAdminID != admin.ID {
		return nil, fmt.Errorf("%w: session %d is assigned to another agent", ErrForbidden, id)
	}

	msg := &domain.ChatMessage{
		SessionID:    id,
		Sender:       domain.SenderAdmin,
		SenderUserID: &admin.ID,
		Content:      content,
	}
	if _, err := s.chats.AddMessageIfStatus(ctx, msg, domain.ChatStatusHumanIntervention); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return nil, err
	}
	return msg, nil
}

func (s *chatService) Release(ctx context.Context, admin *domain.User, id int64) (*domain.ChatSession, error) {
	session, err := s.chats.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.ChatStatusHumanIntervention {
		return nil, fmt.Errorf("%w: session %d is %s", ErrInvalidTransition, id, session.Status)
	}
	if session.AssignedAdminID == nil || *session.AssignedAdminID != admin.ID {
		return nil, fmt.Errorf("%w: session %d is assigned to another agent", ErrForbidden, id)
	}
	updated, _, err := s.transition(ctx, session, domain.ChatStatusActiveAI, domain.StatusChange{ClearAssignee: true},
		admin.FullName+" left the conversation. The assistant is back.")
	return updated, err
}

// transition flips the status with a compare-and-set and records a system note.
func (s *chatService) transition(ctx context.Context, session *domain.ChatSession, to domain.ChatStatus, change domain.StatusChange, note string) (*domain.ChatSession, *domain.ChatMessage, error) {
	from := session.Status
	if !domain.CanTransition(from, to) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if err := s.chats.TransitionStatus(ctx, session.ID, from, to, change); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return nil, nil, err
	}
	s.cfg.Logger.WithField("session_id", session.ID).Infof("chat session %s -> %s", from, to)

	msg := &domain.ChatMessage{SessionID: session.ID, Sender: domain.SenderSystem, Content: note}
	if _, err := s.chats.AddMessage(ctx, msg); err != nil {
		s.cfg.Logger.WithField("session_id", session.ID).Warnf("record transition note: %v", err)
		msg = nil
	}

	updated, err := s.chats.GetSession(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}
	return updated, msg, nil
}

func (s *chatService) ownSession(ctx context.Context, user *domain.User, id int64) (*domain.ChatSession, error) {
	session, err := s.chats.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.UserID != user.ID {
		return nil, ErrNotFound
	}
	return session, nil
}

func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid("content", "is required")
	}
	if utf8.RuneCountInString(content) > maxMessageRunes {
		return "", invalid("content", "must be at most %d characters", maxMessageRunes)
	}
	return content, nil
}

// sessionLocks serialises turns per session and drops idle entries.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[int64]*sessionLock
}

type sessionLock struct {
	sync.Mutex
	refs int
}

func (l *sessionLocks) lock(id int64) func() {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
