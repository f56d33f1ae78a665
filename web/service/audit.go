package service

import (
	"time"

	"github.com/designdesk/designdesk/database"
	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/logger"

	"github.com/goccy/go-json"
)

// Audit actions.
const (
	AuditStatusChange   = "STATUS_CHANGE"
	AuditCategoryAdd    = "CATEGORY_ADD"
	AuditCategoryDelete = "CATEGORY_DELETE"
)

// AuditLogService records staff actions.
type AuditLogService struct{}

func (s *AuditLogService) LogAction(userID int, login, action, resource string, resourceID int, ip string, details map[string]any) error {
	detailsJSON := ""
	if details != nil {
		jsonData, err := json.Marshal(details)
		if err != nil {
			logger.Warning("Failed to marshal audit log details:", err)
		} else {
			detailsJSON = string(jsonData)
		}
	}

	auditLog := model.AuditLog{
		UserID:     userID,
		Login:      login,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IP:         ip,
		Details:    detailsJSON,
		Timestamp:  time.Now(),
	}

	if err := database.GetDB().Create(&auditLog).Error; err != nil {
		logger.Warningf("Failed to create audit log: user=%d, action=%s, resource=%s, error=%v", userID, action, resource, err)
		return err
	}
	return nil
}

// GetRecentLogs returns the latest limit entries, newest first.
func (s *AuditLogService) GetRecentLogs(limit int) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := database.GetDB().Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
