package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/kudibooks/kudibooks/internal/audit/domain"
	"github.com/kudibooks/kudibooks/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
	}
}

func (s *Service) AuditLog(ctx context.Context, companyID, actorID snowflake.ID, action, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	if companyID == 0 {
		return auditdomain.ErrInvalidCompany
	}

	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	var payload datatypes.JSON
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			s.log.Warn("failed to encode audit metadata", zap.Error(err))
		} else {
			payload = datatypes.JSON(raw)
		}
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		CompanyID:  companyID,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   payload,
		CreatedAt:  time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Create(&entry).Error
}

func (s *Service) List(ctx context.Context, companyID snowflake.ID, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	if companyID == 0 {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidCompany
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	stmt := s.db.WithContext(ctx).
		Model(&auditdomain.AuditLog{}).
		Where("company_id = ?", companyID)

	if req.Action != "" {
		stmt = stmt.Where("action = ?", req.Action)
	}
	if req.TargetType != "" {
		stmt = stmt.Where("target_type = ?", req.TargetType)
	}
	if req.TargetID != "" {
		stmt = stmt.Where("target_id = ?", req.TargetID)
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListResponse{}, err
		}
		stmt = stmt.Where("id < ?", cursor.ID)
	}

	var logs []auditdomain.AuditLog
	if err := stmt.Order("id DESC").Limit(pageSize + 1).Find(&logs).Error; err != nil {
		return auditdomain.ListResponse{}, err
	}

	resp := auditdomain.ListResponse{AuditLogs: logs}
	if len(logs) > pageSize {
		resp.AuditLogs = logs[:pageSize]
		resp.HasMore = true
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID: resp.AuditLogs[pageSize-1].ID.String(),
		})
		if err != nil {
			return auditdomain.ListResponse{}, err
		}
		resp.NextPageToken = token
	}
	return resp, nil
}
