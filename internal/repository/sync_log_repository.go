package repository

import (
	"bizops_backend/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrSyncLogClosed is returned when a terminal write targets a log that is
// no longer in progress.
var ErrSyncLogClosed = errors.New("sync log already closed")

type SyncLogRepository struct {
	DB *gorm.DB
}

func NewSyncLogRepository(db *gorm.DB) *SyncLogRepository {
	return &SyncLogRepository{DB: db}
}

func (r *SyncLogRepository) Create(ctx context.Context, l *model.SyncLog) error {
	return r.DB.WithContext(ctx).Create(l).Error
}

type SyncLogOutcome struct {
	Status       model.SyncRunStatus
	Fetched      int
	New          int
	Updated      int
	Failed       int
	ErrorMessage string
	CompletedAt  time.Time
}

// Close performs the terminal write. The in_progress guard makes a second
// close a no-op reported as ErrSyncLogClosed.
func (r *SyncLogRepository) Close(ctx context.Context, id uint, out SyncLogOutcome) error {
	res := r.DB.WithContext(ctx).Model(&model.SyncLog{}).
		Where("id = ? AND status = ?", id, model.SyncInProgress).
		Updates(map[string]interface{}{
			"status":        out.Status,
			"fetched_count": out.Fetched,
			"new_count":     out.New,
			"updated_count": out.Updated,
			"failed_count":  out.Failed,
			"error_message": out.ErrorMessage,
			"completed_at":  out.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSyncLogClosed
	}
	return nil
}

func (r *SyncLogRepository) FindByID(ctx context.Context, id uint) (*model.SyncLog, error) {
	var l model.SyncLog
	if err := r.DB.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *SyncLogRepository) ListRecent(ctx context.Context, questionnaireID uint, limit int) ([]model.SyncLog, error) {
	var ls []model.SyncLog
	err := r.DB.WithContext(ctx).
		Where("questionnaire_id = ?", questionnaireID).
		Order("started_at desc, id desc").
		Limit(limit).
		Find(&ls).Error
	return ls, err
}
