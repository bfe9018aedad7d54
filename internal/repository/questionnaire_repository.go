package repository

import (
	"bizops_backend/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

type QuestionnaireRepository struct {
	DB *gorm.DB
}

func NewQuestionnaireRepository(db *gorm.DB) *QuestionnaireRepository {
	return &QuestionnaireRepository{DB: db}
}

// CreateWithQuestions writes the questionnaire and every question in one
// transaction; a failure on any question leaves no rows behind.
func (r *QuestionnaireRepository) CreateWithQuestions(ctx context.Context, q *model.Questionnaire, questions []model.Question) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Questions").Create(q).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].QuestionnaireID = q.ID
			if err := tx.Create(&questions[i]).Error; err != nil {
				return err
			}
		}
		q.Questions = questions
		return nil
	})
}

func (r *QuestionnaireRepository) FindByID(ctx context.Context, id uint) (*model.Questionnaire, error) {
	var q model.Questionnaire
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, id asc")
		}).
		First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// List returns questionnaires newest first. creatorID 0 lists all.
func (r *QuestionnaireRepository) List(ctx context.Context, creatorID uint, page, limit int) ([]model.Questionnaire, int64, error) {
	var qs []model.Questionnaire
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.Questionnaire{})
	if creatorID > 0 {
		query = query.Where("creator_id = ?", creatorID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc, id desc").Offset(offset).Limit(limit).Find(&qs).Error
	return qs, total, err
}

// Delete removes the questionnaire with its questions, responses and sync logs.
func (r *QuestionnaireRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("questionnaire_id = ?", id).Delete(&model.Response{}).Error; err != nil {
			return err
		}
		if err := tx.Where("questionnaire_id = ?", id).Delete(&model.SyncLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("questionnaire_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Questionnaire{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SaveConversion stores the external form identity and the provider question
// id of every converted question.
func (r *QuestionnaireRepository) SaveConversion(ctx context.Context, id uint, formID, formURL string, questionIDs map[uint]string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Questionnaire{}).Where("id = ?", id).Updates(map[string]interface{}{
			"external_form_id":  formID,
			"external_form_url": formURL,
		}).Error; err != nil {
			return err
		}
		for qid, externalID := range questionIDs {
			if err := tx.Model(&model.Question{}).Where("id = ? AND questionnaire_id = ?", qid, id).
				Update("external_question_id", externalID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateSyncAggregate is last-writer-wins across concurrent runs.
func (r *QuestionnaireRepository) UpdateSyncAggregate(ctx context.Context, id uint, total int, syncedAt time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.Questionnaire{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_responses": total,
		"last_synced_at":  syncedAt,
	}).Error
}

func (r *QuestionnaireRepository) SaveExport(ctx context.Context, id uint, spreadsheetID, spreadsheetURL string) error {
	return r.DB.WithContext(ctx).Model(&model.Questionnaire{}).Where("id = ?", id).Updates(map[string]interface{}{
		"spreadsheet_id":  spreadsheetID,
		"spreadsheet_url": spreadsheetURL,
	}).Error
}
