package message

import (
	"time"

	"github.com/kgellert/teamchat/internal/domain/user"
)

type ContentType string

const (
	ContentTypeText  ContentType = "TEXT"
	ContentTypeImage ContentType = "IMAGE"
	ContentTypeFile  ContentType = "FILE"
)

type Message struct {
	ID          string       `json:"id" db:"id"`
	ChatID      string       `json:"chatId" db:"chat_id"`
	SenderID    string       `json:"senderId" db:"sender_id"`
	Content     string       `json:"content" db:"content"`
	ContentType ContentType  `json:"contentType" db:"content_type"`
	FileURL     *string      `json:"fileUrl" db:"file_url"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	ReadAt      *time.Time   `json:"readAt" db:"read_at"`
	Sender      user.Profile `json:"sender" db:"sender"`
}
