package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kgellert/teamchat/internal/domain/message"
)

// CreateMessage persists a message and its unread accounting in one
// transaction: the message row, the chat's updated_at bump, and an
// unread_count increment for every participant except the sender. Nothing is
// visible to any reader until commit, so a broadcast issued after this call
// returns never references a message a crash could have lost.
func (s *Storage) CreateMessage(
	ctx context.Context,
	chatID, senderID, content string,
	contentType message.ContentType,
	fileURL *string,
) (message.Message, error) {
	const op = "storage.postgres.CreateMessage"

	if contentType == "" {
		contentType = message.ContentTypeText
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return message.Message{}, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var msg message.Message
	err = tx.QueryRowxContext(
		ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, content_type, file_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, chat_id, sender_id, content, content_type, file_url, created_at, read_at`,
		uuid.NewString(), chatID, senderID, content, contentType, fileURL,
	).StructScan(&msg)
	if err != nil {
		return message.Message{}, fmt.Errorf("%s: insert message: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = now() WHERE id = $1`,
		chatID,
	); err != nil {
		return message.Message{}, fmt.Errorf("%s: bump chat: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE chat_participants
		SET unread_count = unread_count + 1
		WHERE chat_id = $1 AND user_id <> $2
	`, chatID, senderID); err != nil {
		return message.Message{}, fmt.Errorf("%s: increment unread: %w", op, err)
	}

	if err := tx.GetContext(ctx, &msg.Sender, `
		SELECT id, display_name, email, avatar_url FROM users WHERE id = $1
	`, senderID); err != nil {
		return message.Message{}, fmt.Errorf("%s: select sender: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return message.Message{}, fmt.Errorf("%s: commit: %w", op, err)
	}

	return msg, nil
}

func (s *Storage) GetMessages(ctx context.Context, chatID string) ([]message.Message, error) {
	const op = "storage.postgres.GetMessages"

	rows, err := s.db.QueryxContext(ctx, `
		SELECT
			m.id, m.chat_id, m.sender_id, m.content, m.content_type,
			m.file_url, m.created_at, m.read_at,
			u.id           AS "sender.id",
			u.display_name AS "sender.display_name",
			u.email        AS "sender.email",
			u.avatar_url   AS "sender.avatar_url"
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = $1
		ORDER BY m.created_at ASC, m.id ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	messages := []message.Message{}
	for rows.Next() {
		var msg message.Message
		if err := rows.StructScan(&msg); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	return messages, nil
}

// MarkChatRead flags every message from other senders as read and zeroes the
// reader's unread counter, in one transaction. read_at only ever moves from
// NULL to a timestamp, so repeating the call changes nothing.
func (s *Storage) MarkChatRead(ctx context.Context, chatID, userID string) (time.Time, error) {
	const op = "storage.postgres.MarkChatRead"

	readAt := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE chat_participants
		SET unread_count = 0, last_read_at = $1
		WHERE chat_id = $2 AND user_id = $3
	`, readAt, chatID, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: reset unread: %w", op, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return time.Time{}, fmt.Errorf("%s: %w", op, ErrNotParticipant)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE messages
		SET read_at = $1
		WHERE chat_id = $2 AND sender_id <> $3 AND read_at IS NULL
	`, readAt, chatID, userID); err != nil {
		return time.Time{}, fmt.Errorf("%s: set read_at: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("%s: commit: %w", op, err)
	}

	return readAt, nil
}
