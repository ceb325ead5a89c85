package models

import "time"

type User struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Username      string    `json:"username" gorm:"size:30;not null;uniqueIndex"`
	DisplayName   string    `json:"display_name" gorm:"size:100"`
	Email         string    `json:"email,omitempty" gorm:"size:255;not null;uniqueIndex"`
	Bio           string    `json:"bio"`
	IsPrivate     bool      `json:"is_private" gorm:"default:false"`
	IsActive      bool      `json:"is_active" gorm:"default:true"`
	CredentialRef string    `json:"-" gorm:"index"` // opaque, owned by the credential service
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserCompact is the author block embedded in post summaries and notifications
type UserCompact struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName}
}

type SignupRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=30"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
}

type SigninRequest struct {
	Login    string `json:"login" validate:"required"` // username or email
	Password string `json:"password" validate:"required"`
}

type FirebaseLoginRequest struct {
	IDToken     string `json:"id_token" validate:"required"`
	Username    string `json:"username,omitempty" validate:"omitempty,min=3,max=30"`
	DisplayName string `json:"display_name,omitempty" validate:"omitempty,max=100"`
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,min=1,max=100"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=500"`
	IsPrivate   *bool   `json:"is_private,omitempty"`
}
