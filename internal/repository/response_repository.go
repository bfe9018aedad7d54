package repository

import (
	"bizops_backend/internal/model"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResponseRepository struct {
	DB *gorm.DB
}

func NewResponseRepository(db *gorm.DB) *ResponseRepository {
	return &ResponseRepository{DB: db}
}

var upsertColumns = []string{
	"respondent_id",
	"respondent_email",
	"answers",
	"raw_payload",
	"submitted_at",
	"last_synced_at",
	"sync_status",
	"updated_at",
}

// Upsert inserts the response or overwrites the row holding the same
// (questionnaire, external response id). created reports whether a row was
// absent when checked.
//
// The existence check and the write are separate statements, so two
// concurrent runs may both report the same response as created. The unique
// index still guarantees a single row.
func (r *ResponseRepository) Upsert(ctx context.Context, resp *model.Response) (created bool, err error) {
	db := r.DB.WithContext(ctx)

	var existing int64
	err = db.Model(&model.Response{}).
		Where("questionnaire_id = ? AND external_response_id = ?", resp.QuestionnaireID, resp.ExternalResponseID).
		Count(&existing).Error
	if err != nil {
		return false, err
	}

	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "questionnaire_id"},
			{Name: "external_response_id"},
		},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(resp).Error
	if err != nil {
		return false, err
	}
	return existing == 0, nil
}

func (r *ResponseRepository) ListByQuestionnaire(ctx context.Context, questionnaireID uint) ([]model.Response, error) {
	var rs []model.Response
	err := r.DB.WithContext(ctx).
		Where("questionnaire_id = ?", questionnaireID).
		Order("submitted_at asc, id asc").
		Find(&rs).Error
	return rs, err
}

func (r *ResponseRepository) ListPage(ctx context.Context, questionnaireID uint, page, limit int) ([]model.Response, int64, error) {
	var rs []model.Response
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.Response{}).Where("questionnaire_id = ?", questionnaireID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("submitted_at desc, id desc").Offset(offset).Limit(limit).Find(&rs).Error
	return rs, total, err
}

func (r *ResponseRepository) Count(ctx context.Context, questionnaireID uint) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&model.Response{}).Where("questionnaire_id = ?", questionnaireID).Count(&total).Error
	return total, err
}
