package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/kgellert/teamchat/internal/domain/chat"
	"github.com/kgellert/teamchat/internal/domain/message"
	"github.com/kgellert/teamchat/internal/domain/user"
)

type participantRow struct {
	ChatID      string       `db:"chat_id"`
	UserID      string       `db:"user_id"`
	JoinedAt    time.Time    `db:"joined_at"`
	UnreadCount int64        `db:"unread_count"`
	LastReadAt  *time.Time   `db:"last_read_at"`
	User        user.Profile `db:"user"`
}

func (r participantRow) toDomain() chat.Participant {
	return chat.Participant{
		ChatID:      r.ChatID,
		UserID:      r.UserID,
		JoinedAt:    r.JoinedAt,
		UnreadCount: r.UnreadCount,
		LastReadAt:  r.LastReadAt,
		User:        r.User,
	}
}

// CreateChat creates a chat with the given participants, or returns the
// existing one for a PRIVATE pair: for any two users at most one PRIVATE
// chat exists, so a repeated create is a lookup. The second return reports
// whether a new chat row was created.
func (s *Storage) CreateChat(
	ctx context.Context,
	chatType chat.Type,
	groupName, groupAvatar *string,
	participantIDs []string,
) (chat.Chat, bool, error) {
	const op = "storage.postgres.CreateChat"

	participantIDs = uniqueStrings(participantIDs)
	if len(participantIDs) == 0 {
		return chat.Chat{}, false, ErrEmptyParticipants
	}
	if chatType == chat.TypePrivate && len(participantIDs) != 2 {
		return chat.Chat{}, false, ErrPrivateParticipants
	}

	if chatType == chat.TypePrivate {
		existingID, err := s.findPrivateChat(ctx, participantIDs)
		if err != nil {
			return chat.Chat{}, false, fmt.Errorf("%s: %w", op, err)
		}
		if existingID != "" {
			existing, err := s.GetChat(ctx, existingID)
			if err != nil {
				return chat.Chat{}, false, fmt.Errorf("%s: %w", op, err)
			}
			return existing, false, nil
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return chat.Chat{}, false, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	chatID := uuid.NewString()

	var created chat.Chat
	err = tx.QueryRowxContext(
		ctx,
		`INSERT INTO chats (id, chat_type, group_name, group_avatar)
		VALUES ($1, $2, $3, $4)
		RETURNING id, chat_type, group_name, group_avatar, created_at, updated_at`,
		chatID, chatType, groupName, groupAvatar,
	).StructScan(&created)
	if err != nil {
		return chat.Chat{}, false, fmt.Errorf("%s: insert chat: %w", op, err)
	}

	for _, userID := range participantIDs {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)`,
			chatID, userID,
		); err != nil {
			return chat.Chat{}, false, fmt.Errorf("%s: insert participant %s: %w", op, userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return chat.Chat{}, false, fmt.Errorf("%s: commit: %w", op, err)
	}

	participants, err := s.getParticipants(ctx, chatID)
	if err != nil {
		return chat.Chat{}, false, fmt.Errorf("%s: %w", op, err)
	}
	created.Participants = participants

	return created, true, nil
}

// findPrivateChat returns the id of the PRIVATE chat whose participant set
// equals exactly the given ids, or "" when none exists. Candidates are every
// PRIVATE chat any requested user belongs to; the exact-set match happens in
// privateChatWithExactSet.
func (s *Storage) findPrivateChat(ctx context.Context, participantIDs []string) (string, error) {
	const op = "storage.postgres.findPrivateChat"

	query, args, err := sqlx.In(`
		SELECT cp.chat_id, cp.user_id
		FROM chat_participants cp
		JOIN chats c ON c.id = cp.chat_id AND c.chat_type = 'PRIVATE'
		WHERE EXISTS (
			SELECT 1 FROM chat_participants x
			WHERE x.chat_id = cp.chat_id AND x.user_id IN (?)
		)
	`, participantIDs)
	if err != nil {
		return "", fmt.Errorf("%s: sqlx.In: %w", op, err)
	}
	query = s.db.Rebind(query)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	sets := make(map[string][]string)
	for rows.Next() {
		var chatID, userID string
		if err := rows.Scan(&chatID, &userID); err != nil {
			return "", fmt.Errorf("%s: scan: %w", op, err)
		}
		sets[chatID] = append(sets[chatID], userID)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("%s: rows: %w", op, err)
	}

	return privateChatWithExactSet(sets, participantIDs), nil
}

// privateChatWithExactSet picks the chat whose participant set equals exactly
// the requested ids. At most one such chat exists, so the first match wins.
func privateChatWithExactSet(sets map[string][]string, participantIDs []string) string {
	want := uniqueStrings(participantIDs)
	for chatID, members := range sets {
		if slices.Equal(uniqueStrings(members), want) {
			return chatID
		}
	}
	return ""
}

func (s *Storage) GetChat(ctx context.Context, chatID string) (chat.Chat, error) {
	const op = "storage.postgres.GetChat"

	var c chat.Chat
	err := s.db.GetContext(ctx, &c, `
		SELECT id, chat_type, group_name, group_avatar, created_at, updated_at
		FROM chats
		WHERE id = $1
	`, chatID)

	if errors.Is(err, sql.ErrNoRows) {
		return chat.Chat{}, fmt.Errorf("%s: %w", op, ErrChatNotFound)
	}
	if err != nil {
		return chat.Chat{}, fmt.Errorf("%s: select chat: %w", op, err)
	}

	participants, err := s.getParticipants(ctx, chatID)
	if err != nil {
		return chat.Chat{}, fmt.Errorf("%s: %w", op, err)
	}
	c.Participants = participants

	return c, nil
}

func (s *Storage) getParticipants(ctx context.Context, chatID string) ([]chat.Participant, error) {
	const op = "storage.postgres.getParticipants"

	rows, err := s.db.QueryxContext(ctx, `
		SELECT
			cp.chat_id,
			cp.user_id,
			cp.joined_at,
			cp.unread_count,
			cp.last_read_at,
			u.id           AS "user.id",
			u.display_name AS "user.display_name",
			u.email        AS "user.email",
			u.avatar_url   AS "user.avatar_url"
		FROM chat_participants cp
		JOIN users u ON u.id = cp.user_id
		WHERE cp.chat_id = $1
		ORDER BY cp.joined_at, cp.user_id
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	var participants []chat.Participant
	for rows.Next() {
		var row participantRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		participants = append(participants, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	return participants, nil
}

// IsParticipant is the point-in-time membership check the gateway runs before
// accepting a mutating action on a chat.
func (s *Storage) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	const op = "storage.postgres.IsParticipant"

	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2
		)
	`, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("%s: select: %w", op, err)
	}

	return exists, nil
}

func (s *Storage) GetParticipantIDs(ctx context.Context, chatID string) ([]string, error) {
	const op = "storage.postgres.GetParticipantIDs"

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `
		SELECT user_id FROM chat_participants WHERE chat_id = $1 ORDER BY user_id
	`, chatID); err != nil {
		return nil, fmt.Errorf("%s: select: %w", op, err)
	}

	return ids, nil
}

type chatListRow struct {
	participantRow
	ChatType    chat.Type `db:"chat_type"`
	GroupName   *string   `db:"group_name"`
	GroupAvatar *string   `db:"group_avatar"`
	UpdatedAt   time.Time `db:"updated_at"`

	MyUnread int64 `db:"my_unread"`

	LastMessageID          *string              `db:"lm_id"`
	LastMessageSenderID    *string              `db:"lm_sender_id"`
	LastMessageContent     *string              `db:"lm_content"`
	LastMessageContentType *message.ContentType `db:"lm_content_type"`
	LastMessageFileURL     *string              `db:"lm_file_url"`
	LastMessageCreatedAt   *time.Time           `db:"lm_created_at"`
	LastMessageReadAt      *time.Time           `db:"lm_read_at"`
	LastMessageSenderName  *string              `db:"lm_sender_name"`
}

// GetUserChats returns the user's chat list, one item per chat, sorted by
// updated_at desc (updated_at is bumped on every message). Each item carries
// the last message, the requester's unread count and the full participant set.
func (s *Storage) GetUserChats(ctx context.Context, userID string) ([]chat.ChatListItem, error) {
	const op = "storage.postgres.GetUserChats"

	rows, err := s.db.QueryxContext(ctx, `
		WITH my_chats AS (
			SELECT chat_id, unread_count
			FROM chat_participants
			WHERE user_id = $1
		),
		last_messages AS (
			SELECT DISTINCT ON (m.chat_id)
				m.chat_id, m.id, m.sender_id, m.content, m.content_type,
				m.file_url, m.created_at, m.read_at,
				su.display_name AS sender_name
			FROM messages m
			JOIN my_chats mc ON mc.chat_id = m.chat_id
			JOIN users su ON su.id = m.sender_id
			ORDER BY m.chat_id, m.created_at DESC, m.id DESC
		)
		SELECT
			c.id             AS chat_id,
			c.chat_type,
			c.group_name,
			c.group_avatar,
			c.updated_at,
			mc.unread_count  AS my_unread,

			cp.user_id,
			cp.joined_at,
			cp.unread_count,
			cp.last_read_at,
			u.id             AS "user.id",
			u.display_name   AS "user.display_name",
			u.email          AS "user.email",
			u.avatar_url     AS "user.avatar_url",

			lm.id            AS lm_id,
			lm.sender_id     AS lm_sender_id,
			lm.content       AS lm_content,
			lm.content_type  AS lm_content_type,
			lm.file_url      AS lm_file_url,
			lm.created_at    AS lm_created_at,
			lm.read_at       AS lm_read_at,
			lm.sender_name   AS lm_sender_name
		FROM my_chats mc
		JOIN chats c ON c.id = mc.chat_id
		JOIN chat_participants cp ON cp.chat_id = c.id
		JOIN users u ON u.id = cp.user_id
		LEFT JOIN last_messages lm ON lm.chat_id = c.id
		ORDER BY c.updated_at DESC, c.id, cp.joined_at, cp.user_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	var (
		items   []chat.ChatListItem
		current *chat.ChatListItem
	)

	for rows.Next() {
		var row chatListRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}

		if current == nil || current.ID != row.ChatID {
			if current != nil {
				items = append(items, *current)
			}
			current = &chat.ChatListItem{
				ID:          row.ChatID,
				IsGroup:     row.ChatType == chat.TypeGroup,
				UnreadCount: row.MyUnread,
				UpdatedAt:   row.UpdatedAt,
				LastMessage: row.lastMessage(),
			}
			if current.IsGroup {
				current.ChatName = "Group Chat"
				if row.GroupName != nil {
					current.ChatName = *row.GroupName
				}
				current.Avatar = row.GroupAvatar
			}
		}

		current.Participants = append(current.Participants, row.toDomain())

		// For private chats the list entry is named after the other side.
		if !current.IsGroup && row.UserID != userID {
			current.ChatName = row.User.DisplayName
			current.Avatar = row.User.AvatarURL
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	if current != nil {
		items = append(items, *current)
	}

	return items, nil
}

func (r chatListRow) lastMessage() *message.Message {
	if r.LastMessageID == nil {
		return nil
	}

	contentType := message.ContentTypeText
	if r.LastMessageContentType != nil {
		contentType = *r.LastMessageContentType
	}

	var senderName string
	if r.LastMessageSenderName != nil {
		senderName = *r.LastMessageSenderName
	}

	return &message.Message{
		ID:          *r.LastMessageID,
		ChatID:      r.ChatID,
		SenderID:    *r.LastMessageSenderID,
		Content:     *r.LastMessageContent,
		ContentType: contentType,
		FileURL:     r.LastMessageFileURL,
		CreatedAt:   derefTime(r.LastMessageCreatedAt),
		ReadAt:      r.LastMessageReadAt,
		Sender: user.Profile{
			ID:          *r.LastMessageSenderID,
			DisplayName: senderName,
		},
	}
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func uniqueStrings(input []string) []string {
	seen := make(map[string]bool, len(input))
	result := make([]string, 0, len(input))

	for _, v := range input {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}

	slices.Sort(result)

	return result
}
