package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kudibooks/kudibooks/pkg/db/pagination"
	"gorm.io/datatypes"
)

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidAction  = errors.New("invalid_action")
)

// AuditLog is one immutable audit trail row.
type AuditLog struct {
	ID         snowflake.ID   `gorm:"primaryKey"`
	CompanyID  snowflake.ID   `gorm:"not null;index"`
	ActorID    snowflake.ID   `gorm:"not null"`
	Action     string         `gorm:"type:text;not null;index"`
	TargetType string         `gorm:"type:text;not null"`
	TargetID   *string        `gorm:"type:text"`
	Metadata   datatypes.JSON `gorm:""`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

type ListRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
}

type ListResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	AuditLog(ctx context.Context, companyID, actorID snowflake.ID, action, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, companyID snowflake.ID, req ListRequest) (ListResponse, error)
}
