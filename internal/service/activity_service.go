package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/models"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
)

type activityStore interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, int, error)
}

// activityRecorder is the fire-and-forget sink used by the domain services.
type activityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry)
}

// ActivityEntry describes one action to append to the activity trail.
type ActivityEntry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]interface{}
}

type clientInfoKey struct{}

type clientInfo struct {
	ip        string
	userAgent string
}

// WithClientInfo attaches the caller's address and user agent so recorded
// activity can carry them without every operation taking them as arguments.
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, clientInfo{ip: ip, userAgent: userAgent})
}

func clientInfoFrom(ctx context.Context) clientInfo {
	info, _ := ctx.Value(clientInfoKey{}).(clientInfo)
	return info
}

// ActivityService appends to and reads the activity trail.
type ActivityService struct {
	repo   activityStore
	logger *zap.Logger
}

// NewActivityService constructs the service.
func NewActivityService(repo activityStore, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, logger: logger}
}

const activityWriteTimeout = 5 * time.Second

// Record stores an entry. Failures are logged and never reach the caller.
func (s *ActivityService) Record(ctx context.Context, entry ActivityEntry) {
	if s == nil || s.repo == nil {
		return
	}
	info := clientInfoFrom(ctx)
	log := &models.ActivityLog{
		Action:     entry.Action,
		EntityType: entry.EntityType,
		IPAddress:  info.ip,
		UserAgent:  info.userAgent,
	}
	if entry.ActorID != "" {
		actorID := entry.ActorID
		log.UserID = &actorID
	}
	if entry.EntityID != "" {
		entityID := entry.EntityID
		log.EntityID = &entityID
	}
	if len(entry.Details) > 0 {
		details, err := json.Marshal(entry.Details)
		if err != nil {
			s.logger.Warn("failed to encode activity details", zap.String("action", entry.Action), zap.Error(err))
		} else {
			log.Details = details
		}
	}
	// The entry describes a mutation that already committed, so a caller that
	// went away must not take the audit row with it.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), activityWriteTimeout)
	defer cancel()
	if err := s.repo.Create(writeCtx, log); err != nil {
		s.logger.Warn("failed to record activity",
			zap.String("action", entry.Action),
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err))
	}
}

// List returns activity entries for administrators.
func (s *ActivityService) List(ctx context.Context, actor access.Actor, filter models.ActivityFilter) ([]models.ActivityLog, *models.Pagination, error) {
	if !access.CanPerform(actor, access.OpViewActivity, access.Resource{}) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view activity logs")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity logs")
	}
	return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}
