package session

import (
	"sort"
	"sync"

	"github.com/kgellert/teamchat/internal/domain/chat"
	"github.com/kgellert/teamchat/internal/ws"
)

// ChatList mirrors the chat-list sidebar: entries ordered by last activity,
// with per-chat unread counters maintained from gateway events rather than
// refetches.
type ChatList struct {
	mu    sync.Mutex
	items map[string]*chat.ChatListItem
}

func NewChatList(initial []chat.ChatListItem) *ChatList {
	l := &ChatList{items: make(map[string]*chat.ChatListItem, len(initial))}
	for i := range initial {
		item := initial[i]
		l.items[item.ID] = &item
	}
	return l
}

// ApplyChatUpdated moves the chat to the top and bumps its unread counter.
// Fired for every participant other than the sender, so no self check is
// needed here.
func (l *ChatList) ApplyChatUpdated(p ws.ChatUpdatedPayload) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[p.ChatID]
	if !ok {
		return
	}

	msg := p.LastMessage
	item.LastMessage = &msg
	item.UpdatedAt = msg.CreatedAt
	if p.IncrementUnread {
		item.UnreadCount++
	}
}

// ApplyMessagesRead zeroes the unread counter after this client's own
// mark-as-read round-trips (readerID == selfID); other readers' receipts do
// not touch the local counter.
func (l *ChatList) ApplyMessagesRead(p ws.MessagesReadPayload, selfID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p.ReaderID != selfID {
		return
	}
	if item, ok := l.items[p.ChatID]; ok {
		item.UnreadCount = 0
	}
}

// ApplyChatCreated inserts a chat pushed by the gateway. Duplicate pushes
// (e.g. a rediscovered private chat) overwrite in place rather than doubling.
func (l *ChatList) ApplyChatCreated(c chat.Chat, selfID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item := chat.ChatListItem{
		ID:           c.ID,
		IsGroup:      c.Type == chat.TypeGroup,
		UpdatedAt:    c.UpdatedAt,
		Participants: c.Participants,
	}

	if item.IsGroup {
		item.ChatName = "Group Chat"
		if c.GroupName != nil {
			item.ChatName = *c.GroupName
		}
		item.Avatar = c.GroupAvatar
	} else {
		for _, p := range c.Participants {
			if p.UserID != selfID {
				item.ChatName = p.User.DisplayName
				item.Avatar = p.User.AvatarURL
				break
			}
		}
	}

	l.items[c.ID] = &item
}

// Ordered returns the entries sorted by UpdatedAt desc, matching the
// server-side chat-list ordering.
func (l *ChatList) Ordered() []chat.ChatListItem {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]chat.ChatListItem, 0, len(l.items))
	for _, item := range l.items {
		out = append(out, *item)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// Unread returns the unread counter for one chat.
func (l *ChatList) Unread(chatID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if item, ok := l.items[chatID]; ok {
		return item.UnreadCount
	}
	return 0
}
