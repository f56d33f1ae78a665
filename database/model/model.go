// Package model defines the persisted entities of designdesk.
package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

type Category struct {
	Id      int    `json:"id" form:"id" gorm:"primaryKey;autoIncrement"`
	Name    string `json:"name" form:"name" gorm:"size:100;not null"`
	NameKey string `json:"-" gorm:"size:100;not null;uniqueIndex"`
}

// CategoryNameKey returns the case-folded form of a category name. Two names
// with the same key are considered duplicates.
func CategoryNameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

type DesignRequest struct {
	Id           int       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId       int       `json:"userId" gorm:"index;not null"`
	User         User      `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Title        string    `json:"title" gorm:"size:200;not null"`
	Description  string    `json:"description" gorm:"not null"`
	CategoryId   int       `json:"categoryId" gorm:"index;not null"`
	Category     Category  `json:"category" gorm:"constraint:OnDelete:CASCADE"`
	PlanImage    string    `json:"planImage" gorm:"not null"`
	Status       Status    `json:"status" gorm:"size:20;not null;default:new;index"`
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
	DesignImage  string    `json:"designImage"`
	AdminComment string    `json:"adminComment"`
}

// Images returns the storage keys referenced by the request.
func (r *DesignRequest) Images() []string {
	keys := []string{r.PlanImage}
	if r.DesignImage != "" {
		keys = append(keys, r.DesignImage)
	}
	return keys
}

type Setting struct {
	Id    int    `json:"id" form:"id" gorm:"primaryKey;autoIncrement"`
	Key   string `json:"key" form:"key" gorm:"uniqueIndex"`
	Value string `json:"value" form:"value"`
}

// AuditLog records an action performed by a staff principal.
type AuditLog struct {
	ID         int       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID     int       `json:"user_id" gorm:"index"`
	Login      string    `json:"login"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID int       `json:"resource_id"`
	IP         string    `json:"ip"`
	Details    string    `json:"details"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
}
