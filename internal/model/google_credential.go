package model

import "time"

// GoogleCredential is the delegated OAuth token set of one internal user.
// Token columns hold ciphertext when a token key is configured.
type GoogleCredential struct {
	Record
	UserID       uint       `gorm:"uniqueIndex;not null" json:"userId"`
	AccessToken  string     `gorm:"type:text;not null" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	TokenType    string     `gorm:"size:32" json:"tokenType"`
	Expiry       *time.Time `json:"expiry,omitempty"`
}

func (GoogleCredential) TableName() string {
	return "google_credentials"
}
