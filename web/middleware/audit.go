package middleware

import (
	"github.com/designdesk/designdesk/logger"
	"github.com/designdesk/designdesk/web/service"
	"github.com/designdesk/designdesk/web/session"

	"github.com/gin-gonic/gin"
)

const auditKey = "audit_entry"

// AuditEntry describes one completed staff action.
type AuditEntry struct {
	Action     string
	Resource   string
	ResourceID int
	Details    map[string]any
}

// Audit marks the current request as having performed entry. It is written
// by AuditMiddleware once the handler returns.
func Audit(c *gin.Context, entry AuditEntry) {
	c.Set(auditKey, entry)
}

// AuditMiddleware records actions reported through Audit in the audit log.
func AuditMiddleware() gin.HandlerFunc {
	auditService := service.AuditLogService{}

	return func(c *gin.Context) {
		c.Next()

		v, ok := c.Get(auditKey)
		if !ok {
			return
		}
		entry, ok := v.(AuditEntry)
		if !ok {
			return
		}
		user := session.GetLoginUser(c)
		if user == nil {
			return
		}
		if err := auditService.LogAction(
			user.Id,
			user.Login,
			entry.Action,
			entry.Resource,
			entry.ResourceID,
			c.ClientIP(),
			entry.Details,
		); err != nil {
			logger.Warning("Failed to log audit action:", err)
		}
	}
}
