package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pulse/internal/domain"
	"pulse/internal/repository"
)

const createChatTables = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	assigned_admin_id INTEGER NULL,
	escalation_reason TEXT NOT NULL DEFAULT '',
	escalated_at DATETIME NULL,
	last_message_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
	FOREIGN KEY(assigned_admin_id) REFERENCES users(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_status ON chat_sessions(status);
CREATE TABLE IF NOT EXISTS chat_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id INTEGER NOT NULL,
	sender TEXT NOT NULL,
	sender_user_id INTEGER NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE,
	FOREIGN KEY(sender_user_id) REFERENCES users(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, id);
`

const sessionColumns = `id, user_id, title, status, assigned_admin_id, escalation_reason, escalated_at, last_message_at, created_at, updated_at`

type ChatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) repository.ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createChatTables); err != nil {
		return fmt.Errorf("create chat tables: %w", err)
	}
	return nil
}

func (r *ChatRepository) CreateSession(ctx context.Context, session *domain.ChatSession) (int64, error) {
	ts := now()
	session.CreatedAt = ts
	session.UpdatedAt = ts
	if session.Status == "" {
		session.Status = domain.ChatStatusActiveAI
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO chat_sessions (user_id, title, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		session.UserID,
		session.Title,
		string(session.Status),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert chat session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("chat session last insert id: %w", err)
	}
	session.ID = id
	return id, nil
}

func (r *ChatRepository) GetSession(ctx context.Context, id int64) (*domain.ChatSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id=?`, id)
	return scanSession(row)
}

func (r *ChatRepository) ListSessionsByUser(ctx context.Context, userID int64) ([]domain.ChatSession, error) {
	return r.querySessions(ctx, `
SELECT `+sessionColumns+`
FROM chat_sessions
WHERE user_id=?
ORDER BY COALESCE(last_message_at, created_at) DESC, id DESC`, userID)
}

// ListSessionsByStatus orders sessions oldest escalation first so the queue is served in arrival order.
func (r *ChatRepository) ListSessionsByStatus(ctx context.Context, statuses ...domain.ChatStatus) ([]domain.ChatSession, error) {
	if len(statuses) == 0 {
		return []domain.ChatSession{}, nil
	}
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	query := fmt.Sprintf(`
SELECT %s
FROM chat_sessions
WHERE status IN (%s)
ORDER BY COALESCE(escalated_at, last_message_at, created_at) ASC, id ASC`, sessionColumns, placeholders(len(statuses)))
	return r.querySessions(ctx, query, args...)
}

func (r *ChatRepository) CountByStatus(ctx context.Context) (map[domain.ChatStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM chat_sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count chat sessions: %w", err)
	}
	defer rows.Close()

	counts := map[domain.ChatStatus]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan chat session count: %w", err)
		}
		counts[domain.ChatStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *ChatRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.ChatStatus, change domain.StatusChange) error {
	sets := "status=?, updated_at=?"
	args := []any{string(to), now()}
	switch {
	case change.ClearAssignee:
		sets += ", assigned_admin_id=NULL"
	case change.AssignedAdminID != nil:
		sets += ", assigned_admin_id=?"
		args = append(args, *change.AssignedAdminID)
	}
	if change.EscalationReason != nil {
		sets += ", escalation_reason=?"
		args = append(args, *change.EscalationReason)
	}
	if change.EscalatedAt != nil {
		sets += ", escalated_at=?"
		args = append(args, change.EscalatedAt.UTC())
	}
	args = append(args, id, string(from))

	res, err := r.db.ExecContext(ctx, `UPDATE chat_sessions SET `+sets+` WHERE id=? AND status=?`, args...)
	if err != nil {
		return fmt.Errorf("transition chat session: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("chat session %d not in %s: %w", id, from, repository.ErrConflict)
	}
	return nil
}

func (r *ChatRepository) AddMessage(ctx context.Context, msg *domain.ChatMessage) (int64, error) {
	return r.addMessage(ctx, msg, nil)
}

func (r *ChatRepository) AddMessageIfStatus(ctx context.Context, msg *domain.ChatMessage, status domain.ChatStatus) (int64, error) {
	return r.addMessage(ctx, msg, &status)
}

func (r *ChatRepository) addMessage(ctx context.Context, msg *domain.ChatMessage, status *domain.ChatStatus) (int64, error) {
	msg.CreatedAt = now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	touch := `UPDATE chat_sessions SET last_message_at=?, updated_at=? WHERE id=?`
	args := []any{msg.CreatedAt, msg.CreatedAt, msg.SessionID}
	if status != nil {
		touch += ` AND status=?`
		args = append(args, string(*status))
	}
	res, err := tx.ExecContext(ctx, touch, args...)
	if err != nil {
		return 0, fmt.Errorf("touch chat session: %w", err)
	}
	if aff, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("touch rows affected: %w", err)
	} else if aff == 0 {
		if status != nil {
			return 0, fmt.Errorf("chat session %d not in %s: %w", msg.SessionID, *status, repository.ErrConflict)
		}
		return 0, fmt.Errorf("chat session %d: %w", msg.SessionID, repository.ErrNotFound)
	}

	res, err = tx.ExecContext(ctx, `
INSERT INTO chat_messages (session_id, sender, sender_user_id, content, created_at)
VALUES (?, ?, ?, ?, ?)`,
		msg.SessionID,
		string(msg.Sender),
		nullInt64(msg.SenderUserID),
		msg.Content,
		msg.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert chat message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("chat message last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit chat message: %w", err)
	}
	msg.ID = id
	return id, nil
}

// ListMessages returns messages with id > afterID in ascending order. A
// non-positive limit means no limit.
func (r *ChatRepository) ListMessages(ctx context.Context, sessionID, afterID int64, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.queryMessages(ctx, `
SELECT id, session_id, sender, sender_user_id, content, created_at
FROM chat_messages
WHERE session_id=? AND id>?
ORDER BY id ASC
LIMIT ?`, sessionID, afterID, limit)
}

// RecentMessages returns the newest limit conversation messages in ascending
// order. SYSTEM notes are skipped so they never take a slot of the window.
func (r *ChatRepository) RecentMessages(ctx context.Context, sessionID int64, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	messages, err := r.queryMessages(ctx, `
SELECT id, session_id, sender, sender_user_id, content, created_at
FROM chat_messages
WHERE session_id=? AND sender<>?
ORDER BY id DESC
LIMIT ?`, sessionID, string(domain.SenderSystem), limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *ChatRepository) querySessions(ctx context.Context, query string, args ...any) ([]domain.ChatSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.ChatSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *ChatRepository) queryMessages(ctx context.Context, query string, args ...any) ([]domain.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var (
			msg    domain.ChatMessage
			sender string
			userID sql.NullInt64
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &sender, &userID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msg.Sender = domain.MessageSender(sender)
		msg.SenderUserID = fromNullInt64(userID)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanSession(row scanner) (*domain.ChatSession, error) {
	var (
		s           domain.ChatSession
		status      string
		assigned    sql.NullInt64
		escalatedAt sql.NullTime
		lastMessage sql.NullTime
	)
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Title,
		&status,
		&assigned,
		&s.EscalationReason,
		&escalatedAt,
		&lastMessage,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat session: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan chat session: %w", err)
	}
	s.Status = domain.ChatStatus(status)
	s.AssignedAdminID = fromNullInt64(assigned)
	s.EscalatedAt = fromNullTime(escalatedAt)
	s.LastMessageAt = fromNullTime(lastMessage)
	return &s, nil
}

var _ repository.ChatRepository = (*ChatRepository)(nil)
