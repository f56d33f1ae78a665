package model

import "time"

// User is the single principal type. Staff capability is a flag, not a subtype.
type User struct {
	Id           int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Login        string    `json:"login" gorm:"size:150;uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"size:254;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"`
	FirstName    string    `json:"firstName" gorm:"size:150"`
	LastName     string    `json:"lastName" gorm:"size:150"`
	IsStaff      bool      `json:"isStaff" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// FullName joins the stored name parts in display order.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.LastName + " " + u.FirstName
}
