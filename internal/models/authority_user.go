package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthorityUser is an official who acts on complaints. The optional
// State/City pair scopes which complaints the user sees by default.
type AuthorityUser struct {
	ID           string `gorm:"primaryKey" json:"id"` // UUID
	Email        string `gorm:"uniqueIndex" json:"email"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`
	State        string `json:"state,omitempty"`
	City         string `json:"city,omitempty"`
}

// BeforeCreate is a GORM hook that assigns a UUID if the ID is not set yet.
func (u *AuthorityUser) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// Actor is the authenticated identity performing a lifecycle operation.
// The core trusts it as supplied by the auth layer.
type Actor struct {
	ID    string
	Role  string
	State string
	City  string
}
