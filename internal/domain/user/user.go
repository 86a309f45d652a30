package user

import "time"

type User struct {
	ID          string    `json:"id" db:"id"`
	DisplayName string    `json:"displayName" db:"display_name"`
	Email       string    `json:"email" db:"email"`
	AvatarURL   *string   `json:"avatarUrl" db:"avatar_url"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Profile is the subset of User embedded in messages and chat lists.
type Profile struct {
	ID          string  `json:"id" db:"id"`
	DisplayName string  `json:"displayName" db:"display_name"`
	Email       string  `json:"email" db:"email"`
	AvatarURL   *string `json:"avatarUrl" db:"avatar_url"`
}
