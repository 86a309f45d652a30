package storage

import "errors"

var (
	ErrEmptyParticipants   = errors.New("no participants provided")
	ErrPrivateParticipants = errors.New("a private chat requires exactly 2 distinct participants")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrChatNotFound        = errors.New("chat not found")
	ErrNotParticipant      = errors.New("user is not a chat participant")
	ErrTokenNotFound       = errors.New("token not found")
	ErrTokenExpired        = errors.New("token expired")
)
