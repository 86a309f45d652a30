package chat

import (
	"time"

	"github.com/kgellert/teamchat/internal/domain/message"
	"github.com/kgellert/teamchat/internal/domain/user"
)

type Type string

const (
	TypePrivate Type = "PRIVATE"
	TypeGroup   Type = "GROUP"
)

type Chat struct {
	ID           string        `json:"id" db:"id"`
	Type         Type          `json:"chatType" db:"chat_type"`
	GroupName    *string       `json:"groupName" db:"group_name"`
	GroupAvatar  *string       `json:"groupAvatar" db:"group_avatar"`
	CreatedAt    time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time     `json:"updatedAt" db:"updated_at"`
	Participants []Participant `json:"participants"`
}

type Participant struct {
	ChatID      string       `json:"chatId" db:"chat_id"`
	UserID      string       `json:"userId" db:"user_id"`
	JoinedAt    time.Time    `json:"joinedAt" db:"joined_at"`
	UnreadCount int64        `json:"unreadCount" db:"unread_count"`
	LastReadAt  *time.Time   `json:"lastReadAt" db:"last_read_at"`
	User        user.Profile `json:"user" db:"user"`
}

// ChatListItem is one entry of a user's chat list, sorted by UpdatedAt desc.
// ChatName and Avatar are resolved per requester: the group name for GROUP
// chats, the other participant's profile for PRIVATE ones.
type ChatListItem struct {
	ID           string           `json:"id"`
	ChatName     string           `json:"chatName"`
	Avatar       *string          `json:"avatar"`
	IsGroup      bool             `json:"isGroup"`
	LastMessage  *message.Message `json:"lastMessage"`
	UnreadCount  int64            `json:"unreadCount"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	Participants []Participant    `json:"participants"`
}
